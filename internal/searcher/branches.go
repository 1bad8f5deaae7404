package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/medsearch-mcp/internal/textnorm"
	"github.com/dshills/medsearch-mcp/pkg/types"
)

var (
	// ErrNoServiceIDs is returned when a lookup names no service
	ErrNoServiceIDs = errors.New("at least one service id is required")
	// ErrLookupFailed wraps remote failures of detail and branch lookups
	ErrLookupFailed = errors.New("lookup failed")
)

// BranchFilter narrows a branch list. Empty fields match everything.
type BranchFilter struct {
	City     string
	District string
	Query    string // Accent-insensitive match on name and address
}

// Match reports whether b passes every set field
func (f BranchFilter) Match(b types.Branch) bool {
	if city := strings.TrimSpace(f.City); city != "" && b.City != city {
		return false
	}
	if district := strings.TrimSpace(f.District); district != "" && b.District != district {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		haystack := textnorm.Normalize(b.Name + " " + b.Address)
		if !strings.Contains(haystack, textnorm.Normalize(q)) {
			return false
		}
	}
	return true
}

// FilterBranches returns the branches matching f, in input order
func FilterBranches(branches []types.Branch, f BranchFilter) []types.Branch {
	out := make([]types.Branch, 0, len(branches))
	for _, b := range branches {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	return out
}

// BranchResult is a filtered branch list plus the filter values available
// in the unfiltered list
type BranchResult struct {
	Branches  []types.Branch
	Total     int // Branches before filtering
	Cities    []string
	Districts []string
}

// Branches returns the branches offering every one of ids. A single id is
// a package booking; several ids are a cart of single tests, and only
// branches that offer all of them are kept.
func (s *Searcher) Branches(ctx context.Context, ids []types.ID, filter BranchFilter) (*BranchResult, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, ErrNoServiceIDs
	}

	lists := make([][]types.Branch, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			branches, err := s.client.ServiceBranches(gctx, id)
			if err != nil {
				return fmt.Errorf("branches for service %s: %w", id, err)
			}
			lists[i] = branches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("branch lookup failed", "services", len(ids), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	common := intersectBranches(lists)
	return &BranchResult{
		Branches:  FilterBranches(common, filter),
		Total:     len(common),
		Cities:    distinct(common, func(b types.Branch) string { return b.City }),
		Districts: distinct(common, func(b types.Branch) string { return b.District }),
	}, nil
}

// intersectBranches keeps branches present in every list, ordered by first
// appearance across the lists
func intersectBranches(lists [][]types.Branch) []types.Branch {
	type entry struct {
		branch types.Branch
		seenIn int
	}

	order := make([]types.ID, 0)
	entries := make(map[types.ID]*entry)
	for _, list := range lists {
		seen := make(map[types.ID]bool, len(list))
		for _, b := range list {
			if seen[b.ID] {
				continue
			}
			seen[b.ID] = true

			e, ok := entries[b.ID]
			if !ok {
				e = &entry{branch: b}
				entries[b.ID] = e
				order = append(order, b.ID)
			}
			e.seenIn++
		}
	}

	out := make([]types.Branch, 0, len(order))
	for _, id := range order {
		if e := entries[id]; e.seenIn == len(lists) {
			out = append(out, e.branch)
		}
	}
	return out
}

func distinct(branches []types.Branch, field func(types.Branch) string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, b := range branches {
		v := field(b)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func uniqueIDs(ids []types.ID) []types.ID {
	seen := make(map[types.ID]bool, len(ids))
	out := make([]types.ID, 0, len(ids))
	for _, id := range ids {
		id = types.ID(strings.TrimSpace(id.String()))
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// PackageComponents returns the component tests of a package. Lists are
// cached per package id until InvalidateCache.
func (s *Searcher) PackageComponents(ctx context.Context, id types.ID) ([]types.ServiceRecord, bool, error) {
	id = types.ID(strings.TrimSpace(id.String()))
	if id.IsZero() {
		return nil, false, ErrNoServiceIDs
	}
	if cached, ok := s.components.Get(id); ok {
		return cached, true, nil
	}

	detail, err := s.client.ServiceDetail(ctx, id)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, false, ctxErr
	}
	if err != nil {
		s.logger.Warn("service detail lookup failed", "id", id.String(), "error", err)
		return nil, false, fmt.Errorf("%w: service %s: %v", ErrLookupFailed, id, err)
	}

	components := detail.Components
	if components == nil {
		components = []types.ServiceRecord{}
	}
	s.components.Add(id, components)
	return components, false, nil
}
