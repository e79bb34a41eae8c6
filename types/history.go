package types

// History capability markers. They are zero-size, compile-time-only tags: a
// HistoryMode type parameter selects at instantiation time whether an engine
// retains rollback history, and the snapshot method group exists only on
// history-enabled instances (vm.HistoryVM), never behind a runtime flag.

// HistoryEnabled marks an instance that retains undo history and supports
// the snapshot method group.
type HistoryEnabled struct{}

// HistoryDisabled marks an instance without history; snapshot operations do
// not exist on it.
type HistoryDisabled struct{}

// HistoryMode constrains a type parameter to one of the two markers.
type HistoryMode interface {
	HistoryEnabled | HistoryDisabled
}

// HistoryRetained reports, for a concrete marker H, whether history is
// enabled. The result is a constant for any instantiation.
func HistoryRetained[H HistoryMode]() bool {
	_, ok := any(*new(H)).(HistoryEnabled)
	return ok
}
