// internal/ordering/ordering_test.go
package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-davidv/Donezo/internal/models"
)

func todo(id string, order int, completed bool, modifiedAt int64) *models.Todo {
	return &models.Todo{
		ID:             id,
		Title:          "todo " + id,
		Completed:      completed,
		Order:          order,
		LastModifiedAt: modifiedAt,
	}
}

func ids(todos []*models.Todo) []string {
	out := make([]string, len(todos))
	for i, t := range todos {
		out[i] = t.ID
	}
	return out
}

func TestSort(t *testing.T) {
	tests := []struct {
		name string
		in   []*models.Todo
		want []string
	}{
		{
			name: "incomplete before completed",
			in: []*models.Todo{
				todo("done", 0, true, 50),
				todo("open", 5, false, 10),
			},
			want: []string{"open", "done"},
		},
		{
			name: "incomplete ascending by order",
			in: []*models.Todo{
				todo("c", 20, false, 0),
				todo("a", 0, false, 0),
				todo("b", 10, false, 0),
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "completed descending by last modified",
			in: []*models.Todo{
				todo("old", -1, true, 100),
				todo("new", -1, true, 300),
				todo("mid", -1, true, 200),
			},
			want: []string{"new", "mid", "old"},
		},
		{
			name: "missing last modified sorts last among completed",
			in: []*models.Todo{
				todo("unknown", -1, true, 0),
				todo("recent", -1, true, 42),
			},
			want: []string{"recent", "unknown"},
		},
		{
			name: "equal ranks keep snapshot order",
			in: []*models.Todo{
				todo("first", 0, false, 0),
				todo("second", 0, false, 0),
				todo("third", 0, false, 0),
			},
			want: []string{"first", "second", "third"},
		},
		{
			name: "mixed",
			in: []*models.Todo{
				todo("d1", -1, true, 500),
				todo("i2", 1000, false, 900),
				todo("d2", -1, true, 700),
				todo("i1", 0, false, 100),
			},
			want: []string{"i1", "i2", "d2", "d1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Sort(tt.in)
			assert.Equal(t, tt.want, ids(tt.in))
		})
	}
}

func TestSortOrderIsNonDecreasing(t *testing.T) {
	in := []*models.Todo{
		todo("a", 7, false, 0),
		todo("b", 3, false, 0),
		todo("c", 3, false, 0),
		todo("d", 0, false, 0),
		todo("e", 12, false, 0),
	}
	Sort(in)
	for i := 1; i < len(in); i++ {
		assert.LessOrEqual(t, in[i-1].Order, in[i].Order)
	}
}

func TestNextOrder(t *testing.T) {
	t.Run("empty list starts at zero", func(t *testing.T) {
		assert.Equal(t, 0, NextOrder(nil))
	})

	t.Run("one greater than highest incomplete", func(t *testing.T) {
		in := []*models.Todo{
			todo("a", 0, false, 0),
			todo("b", 2000, false, 0),
		}
		assert.Equal(t, 2001, NextOrder(in))
	})

	t.Run("completed todos are ignored", func(t *testing.T) {
		in := []*models.Todo{
			todo("a", 1, false, 0),
			todo("b", 9000, true, 0),
		}
		assert.Equal(t, 2, NextOrder(in))
	})
}

func TestPlanReorder(t *testing.T) {
	incomplete := func() []*models.Todo {
		return []*models.Todo{
			todo("a", 0, false, 0),
			todo("b", 1, false, 0),
			todo("c", 2, false, 0),
			todo("d", 3, false, 0),
		}
	}

	t.Run("move forward", func(t *testing.T) {
		updates, err := PlanReorder(incomplete(), 0, 2)
		require.NoError(t, err)
		require.Len(t, updates, 4)

		// Final order b, c, a, d with gap-spaced ranks.
		want := []OrderUpdate{
			{ID: "b", Order: 0},
			{ID: "c", Order: Gap},
			{ID: "a", Order: 2 * Gap},
			{ID: "d", Order: 3 * Gap},
		}
		assert.Equal(t, want, updates)
	})

	t.Run("move backward", func(t *testing.T) {
		updates, err := PlanReorder(incomplete(), 3, 0)
		require.NoError(t, err)
		want := []OrderUpdate{
			{ID: "d", Order: 0},
			{ID: "a", Order: Gap},
			{ID: "b", Order: 2 * Gap},
			{ID: "c", Order: 3 * Gap},
		}
		assert.Equal(t, want, updates)
	})

	t.Run("ranks strictly increase by the gap", func(t *testing.T) {
		updates, err := PlanReorder(incomplete(), 1, 2)
		require.NoError(t, err)
		for i, u := range updates {
			assert.Equal(t, i*Gap, u.Order)
		}
	})

	t.Run("moved todo lands at destination", func(t *testing.T) {
		updates, err := PlanReorder(incomplete(), 0, 3)
		require.NoError(t, err)
		assert.Equal(t, "a", updates[3].ID)
		assert.Equal(t, 3*Gap, updates[3].Order)
	})

	t.Run("source out of range", func(t *testing.T) {
		_, err := PlanReorder(incomplete(), 4, 0)
		assert.Error(t, err)
	})

	t.Run("destination out of range", func(t *testing.T) {
		_, err := PlanReorder(incomplete(), 0, -1)
		assert.Error(t, err)
	})
}

func TestPlanReactivation(t *testing.T) {
	in := []*models.Todo{
		todo("a", 1000, false, 0),
		todo("b", 2000, false, 0),
		todo("c", 5000, false, 0),
	}
	updates := PlanReactivation(in)
	want := []OrderUpdate{
		{ID: "a", Order: 0},
		{ID: "b", Order: 1},
		{ID: "c", Order: 2},
	}
	assert.Equal(t, want, updates)
}

func TestIncomplete(t *testing.T) {
	in := []*models.Todo{
		todo("a", 0, false, 0),
		todo("b", -1, true, 0),
		todo("c", 1, false, 0),
	}
	assert.Equal(t, []string{"a", "c"}, ids(Incomplete(in)))
}
