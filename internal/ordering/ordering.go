// internal/ordering/ordering.go

// Package ordering derives the deterministic display order of a shared todo
// list and plans the rank reassignment that backs manual reordering and
// completion toggles. Ranks are plain ints: incomplete todos sort ascending by
// rank, completed todos sort by recency and keep no meaningful rank.
package ordering

import (
	"fmt"
	"sort"

	"github.com/j-davidv/Donezo/internal/models"
)

// Gap is the spacing between ranks assigned by a reorder. The slack leaves
// room for future insertions without renumbering the whole list.
const Gap = 1000

// CompletedOrder is the rank written to a todo when it transitions to
// completed. Completed todos sort by recency, so the value itself is inert.
const CompletedOrder = -1

// Sort orders todos in place for display:
//
//  1. incomplete todos before completed ones
//  2. incomplete todos ascending by rank, original order kept on ties
//  3. completed todos descending by last-modified time (missing time sorts last)
func Sort(todos []*models.Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		return compare(todos[i], todos[j]) < 0
	})
}

func compare(a, b *models.Todo) int {
	if a.Completed != b.Completed {
		if a.Completed {
			return 1
		}
		return -1
	}
	if !a.Completed {
		return a.Order - b.Order
	}
	switch {
	case a.LastModifiedAt > b.LastModifiedAt:
		return -1
	case a.LastModifiedAt < b.LastModifiedAt:
		return 1
	}
	return 0
}

// Incomplete returns the incomplete todos, keeping their relative order.
func Incomplete(todos []*models.Todo) []*models.Todo {
	out := make([]*models.Todo, 0, len(todos))
	for _, t := range todos {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

// NextOrder returns the rank for a freshly created todo: one greater than the
// highest rank among the visible incomplete todos, so the new todo sorts last.
// With no incomplete todos the first rank is 0.
func NextOrder(todos []*models.Todo) int {
	highest := -1
	for _, t := range todos {
		if !t.Completed && t.Order > highest {
			highest = t.Order
		}
	}
	return highest + 1
}

// OrderUpdate assigns a new rank to a single todo.
type OrderUpdate struct {
	ID    string
	Order int
}

// PlanReorder moves the todo at src to dst within the incomplete subsequence
// and reassigns every incomplete todo a gap-spaced rank (position * Gap).
// Completed todos are never reorderable and must not be in the input.
func PlanReorder(incomplete []*models.Todo, src, dst int) ([]OrderUpdate, error) {
	n := len(incomplete)
	if src < 0 || src >= n {
		return nil, fmt.Errorf("reorder source index %d out of range [0,%d)", src, n)
	}
	if dst < 0 || dst >= n {
		return nil, fmt.Errorf("reorder destination index %d out of range [0,%d)", dst, n)
	}

	reordered := make([]*models.Todo, 0, n)
	reordered = append(reordered, incomplete[:src]...)
	reordered = append(reordered, incomplete[src+1:]...)

	rest := reordered
	reordered = make([]*models.Todo, 0, n)
	reordered = append(reordered, rest[:dst]...)
	reordered = append(reordered, incomplete[src])
	reordered = append(reordered, rest[dst:]...)

	updates := make([]OrderUpdate, n)
	for i, t := range reordered {
		updates[i] = OrderUpdate{ID: t.ID, Order: i * Gap}
	}
	return updates, nil
}

// PlanReactivation densely renumbers the given incomplete todos 0..n-1. Used
// when a completed todo re-enters the incomplete list: the returning todo takes
// rank n and the survivors are renumbered so repeated toggles cannot collide.
func PlanReactivation(incomplete []*models.Todo) []OrderUpdate {
	updates := make([]OrderUpdate, len(incomplete))
	for i, t := range incomplete {
		updates[i] = OrderUpdate{ID: t.ID, Order: i}
	}
	return updates
}
