package history

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJournalRevertRunsUndosInReverse(t *testing.T) {
	j := NewJournal(true)
	var order []int
	j.Append(func() { order = append(order, 1) })
	j.Append(func() { order = append(order, 2) })
	j.Append(func() { order = append(order, 3) })

	j.RevertTo(1)
	require.Equal(t, []int{3, 2}, order)
	require.Equal(t, 1, j.Length())
}

func TestJournalDisabledRecordsNothing(t *testing.T) {
	j := NewJournal(false)
	j.Append(func() { t.Fatal("undo must never run") })
	require.Equal(t, 0, j.Length())
	j.RevertTo(0)
}

func TestJournalRevertOutOfRange(t *testing.T) {
	j := NewJournal(true)
	require.Panics(t, func() { j.RevertTo(1) })
	require.Panics(t, func() { j.RevertTo(-1) })
}

func TestVectorRollback(t *testing.T) {
	j := NewJournal(true)
	v := NewVector[int](j)

	v.Append(10)
	mark := j.Length()
	v.Append(20)
	v.Append(30)
	require.Equal(t, []int{10, 20, 30}, v.Items())
	require.Equal(t, 3, v.HistorySize())

	j.RevertTo(mark)
	require.Equal(t, []int{10}, v.Items())
	require.Equal(t, 1, v.Size())
	require.Equal(t, 1, v.HistorySize())
}

func TestVectorWithoutHistory(t *testing.T) {
	v := NewVector[int](NewJournal(false))
	v.Append(1)
	v.Append(2)
	require.Equal(t, 2, v.Size())
	require.Equal(t, 0, v.HistorySize())
}

func TestMapRollbackRestoresPreviousValues(t *testing.T) {
	j := NewJournal(true)
	m := NewMap[string, int](j)

	m.Set("a", 1)
	mark := j.Length()
	m.Set("a", 2)
	m.Set("b", 3)

	got, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 2, got)
	require.Equal(t, 2, m.Size())

	j.RevertTo(mark)
	got, ok = m.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, got, "overwrite undone")
	_, ok = m.Get("b")
	require.False(t, ok, "insert undone")
	require.Equal(t, 1, m.Size())
	require.Equal(t, 1, m.HistorySize())
}
