package episode

import (
	"maps"
	"slices"
)

// Set maps a season number to the episode numbers held for it.
// The zero value is not usable; use NewSet.
type Set map[int]map[int]struct{}

func NewSet() Set {
	return Set{}
}

// Add records an episode. Adding an episode twice is a no-op.
func (s Set) Add(id ID) {
	eps, ok := s[id.Season]
	if !ok {
		eps = map[int]struct{}{}
		s[id.Season] = eps
	}
	eps[id.Episode] = struct{}{}
}

// AddRange records every episode in the inclusive interval [start, end].
func (s Set) AddRange(season, start, end int) {
	for ep := start; ep <= end; ep++ {
		s.Add(ID{Season: season, Episode: ep})
	}
}

func (s Set) Has(id ID) bool {
	eps, ok := s[id.Season]
	if !ok {
		return false
	}
	_, ok = eps[id.Episode]
	return ok
}

// Seasons returns the seasons that hold at least one episode, ascending.
func (s Set) Seasons() []int {
	seasons := make([]int, 0, len(s))
	for season, eps := range s {
		if len(eps) > 0 {
			seasons = append(seasons, season)
		}
	}
	slices.Sort(seasons)
	return seasons
}

// Episodes returns the episodes held for a season, ascending.
func (s Set) Episodes(season int) []int {
	return slices.Sorted(maps.Keys(s[season]))
}

// Len is the total number of episodes across all seasons.
func (s Set) Len() int {
	n := 0
	for _, eps := range s {
		n += len(eps)
	}
	return n
}

func (s Set) Clone() Set {
	c := make(Set, len(s))
	for season, eps := range s {
		c[season] = maps.Clone(eps)
	}
	return c
}

// Merge adds every episode of other into s.
func (s Set) Merge(other Set) {
	for season, eps := range other {
		for ep := range eps {
			s.Add(ID{Season: season, Episode: ep})
		}
	}
}
