package orchestrate

import (
	"time"

	"assay/internal/types"
)

// EventType discriminates ScanEvents.
type EventType string

const (
	// EventPhase marks a scan status transition.
	EventPhase EventType = "phase"
	// EventExtractorDone marks one extractor finishing, successfully or not.
	EventExtractorDone EventType = "extractor_done"
)

// ScanEvent is a lifecycle notification. Events are advisory: consumers that
// fall behind lose events, never scans.
type ScanEvent struct {
	Type      EventType        `json:"type"`
	ScanID    string           `json:"scan_id"`
	Root      string           `json:"root"`
	Status    types.ScanStatus `json:"status,omitempty"`
	Extractor string           `json:"extractor,omitempty"`
	Signals   int              `json:"signals,omitempty"`
	Err       string           `json:"err,omitempty"`
	At        time.Time        `json:"at"`
}
