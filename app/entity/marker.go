package entity

import "time"

type MarkerState string

const (
	MarkerProcessing MarkerState = "processing"
	MarkerSucceeded  MarkerState = "succeeded"
	MarkerFailed     MarkerState = "failed"
)

// SessionMarker records that a checkout session_id has been reconciled in a tab.
type SessionMarker struct {
	SessionID string      `json:"session_id"`
	State     MarkerState `json:"state"`
	Message   string      `json:"message,omitempty"`
	MarkedAt  time.Time   `json:"marked_at"`
}

func (m *SessionMarker) Terminal() bool {
	return m != nil && (m.State == MarkerSucceeded || m.State == MarkerFailed)
}
