// Package cardtree keeps a user's cards as an id-indexed forest and guards
// the acyclicity of the parent relation.
package cardtree

import (
	"sort"

	"rdolist/models"
)

type Forest struct {
	parent   map[int64]*int64
	children map[int64][]int64
}

// New indexes the given cards. Parent ids that do not refer to one of the
// cards are treated as absent.
func New(cards []models.Card) *Forest {
	f := &Forest{
		parent:   make(map[int64]*int64, len(cards)),
		children: make(map[int64][]int64),
	}
	for _, c := range cards {
		f.parent[c.ID] = nil
	}
	for _, c := range cards {
		if c.ParentCardID == nil {
			continue
		}
		if _, ok := f.parent[*c.ParentCardID]; !ok {
			continue
		}
		p := *c.ParentCardID
		f.parent[c.ID] = &p
		f.children[p] = append(f.children[p], c.ID)
	}
	for id := range f.children {
		sort.Slice(f.children[id], func(i, j int) bool { return f.children[id][i] < f.children[id][j] })
	}
	return f
}

func (f *Forest) Has(id int64) bool {
	_, ok := f.parent[id]
	return ok
}

// Parent returns the parent of id, if any.
func (f *Forest) Parent(id int64) (int64, bool) {
	p := f.parent[id]
	if p == nil {
		return 0, false
	}
	return *p, true
}

func (f *Forest) Children(id int64) []int64 {
	return f.children[id]
}

// Roots returns the ids of parentless cards in ascending order.
func (f *Forest) Roots() []int64 {
	var roots []int64
	for id, p := range f.parent {
		if p == nil {
			roots = append(roots, id)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}

// IsAncestorOf reports whether candidate lies anywhere in the subtree below
// ancestor. Every branch is visited.
func (f *Forest) IsAncestorOf(ancestor, candidate int64) bool {
	stack := append([]int64(nil), f.children[ancestor]...)
	seen := make(map[int64]bool)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == candidate {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, f.children[id]...)
	}
	return false
}

// Reparent moves id under newParent. It refuses, leaving the forest
// untouched, when the move would close a cycle.
func (f *Forest) Reparent(id, newParent int64) bool {
	if !f.Has(id) || !f.Has(newParent) {
		return false
	}
	if id == newParent || f.IsAncestorOf(id, newParent) {
		return false
	}
	if old := f.parent[id]; old != nil {
		siblings := f.children[*old]
		for i, c := range siblings {
			if c == id {
				f.children[*old] = append(siblings[:i:i], siblings[i+1:]...)
				break
			}
		}
	}
	p := newParent
	f.parent[id] = &p
	f.children[p] = append(f.children[p], id)
	sort.Slice(f.children[p], func(i, j int) bool { return f.children[p][i] < f.children[p][j] })
	return true
}

// Levels returns the subtree rooted at id grouped by depth, the root alone
// in the first level. Deleting the levels in reverse order never removes a
// card that still has children.
func (f *Forest) Levels(id int64) [][]int64 {
	if !f.Has(id) {
		return nil
	}
	var levels [][]int64
	seen := map[int64]bool{id: true}
	current := []int64{id}
	for len(current) > 0 {
		levels = append(levels, current)
		var next []int64
		for _, c := range current {
			for _, child := range f.children[c] {
				if !seen[child] {
					seen[child] = true
					next = append(next, child)
				}
			}
		}
		current = next
	}
	return levels
}

// Subtree returns id and all of its descendants.
func (f *Forest) Subtree(id int64) []int64 {
	var ids []int64
	for _, level := range f.Levels(id) {
		ids = append(ids, level...)
	}
	return ids
}

// Feed assembles the nested view of the subtree rooted at id.
func Feed(f *Forest, cards map[int64]models.Card, todos map[int64][]models.Todo, id int64) models.CardFeed {
	return feed(f, cards, todos, id, make(map[int64]bool))
}

func feed(f *Forest, cards map[int64]models.Card, todos map[int64][]models.Todo, id int64, seen map[int64]bool) models.CardFeed {
	seen[id] = true
	c := cards[id]
	out := models.CardFeed{
		ID:           c.ID,
		Title:        c.Title,
		Note:         c.Note,
		ParentCardID: c.ParentCardID,
		OwnerID:      c.OwnerID,
		ChildCards:   []models.CardFeed{},
		Todos:        todos[id],
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if out.Todos == nil {
		out.Todos = []models.Todo{}
	}
	for _, child := range f.Children(id) {
		if !seen[child] {
			out.ChildCards = append(out.ChildCards, feed(f, cards, todos, child, seen))
		}
	}
	return out
}
