package change

import "sync"

// Staging accumulates proposed changes during an integration loop.
// It is a path-keyed map: a later write for the same path replaces the
// earlier one, so the finalized ChangeSet never carries two items with
// different actions for one path. Insertion order of first appearance is
// preserved for deterministic output.
type Staging struct {
	mu    sync.Mutex
	items map[string]Item
	order []string
}

// NewStaging creates an empty staging area.
func NewStaging() *Staging {
	return &Staging{items: make(map[string]Item)}
}

// Stage records a proposed change, replacing any prior item for the path.
func (s *Staging) Stage(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.items[item.Path]; !seen {
		s.order = append(s.order, item.Path)
	}
	s.items[item.Path] = item
}

// Len returns the number of distinct staged paths.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Items returns the staged items in first-staged order.
func (s *Staging) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, 0, len(s.order))
	for _, path := range s.order {
		out = append(out, s.items[path])
	}
	return out
}

// ToChangeSet snapshots the staging area into a ChangeSet.
func (s *Staging) ToChangeSet(summary string, confidence float64) *ChangeSet {
	return &ChangeSet{
		Items:      s.Items(),
		Summary:    summary,
		Confidence: confidence,
	}
}
