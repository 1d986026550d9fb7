package models

// EventKind names a notification emitted by the error store.
type EventKind string

// Store event kinds.
const (
	// EventErrorCaptured fires once per newly ingested error.
	EventErrorCaptured EventKind = "error_captured"
	// EventListChanged fires once at the end of a reconciliation pass.
	EventListChanged EventKind = "error_list_changed"
	// EventErrorAnalyzed fires when an analysis result is attached.
	EventErrorAnalyzed EventKind = "error_analyzed"
)

// StoreEvent is delivered to store observers.
// Error is nil for EventListChanged.
type StoreEvent struct {
	Kind  EventKind
	Error *CapturedError
}
