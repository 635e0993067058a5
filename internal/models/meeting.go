// Package models defines the data structures for meeting records and
// session events.
package models

// PendingMeetingSave is the durable, serializable core of a save attempt.
// It is persisted to local storage when a save cannot complete and survives
// process restarts until a save succeeds or the user discards it.
type PendingMeetingSave struct {
	RoomID       string   `json:"roomId"`
	RoomName     string   `json:"roomName"`
	Transcript   []string `json:"transcript"`
	Participants []string `json:"participants"`

	// IdempotencyKey is minted once per payload and reused across retries
	// so an ambiguous failure cannot duplicate the record on a backend
	// that honors the key.
	IdempotencyKey string `json:"idempotencyKey"`

	CreatedAt int64 `json:"createdAt"`
}

// SaveState is the coarse status of the end-of-call save.
type SaveState int

const (
	// SaveIdle - no save has been attempted.
	SaveIdle SaveState = iota
	// SaveSaving - a save attempt is in flight.
	SaveSaving
	// SaveSuccess - the backend confirmed a created meeting record.
	SaveSuccess
	// SaveError - the attempt failed; the payload is retained for retry.
	SaveError
)

// String returns the string representation of the save state.
func (s SaveState) String() string {
	switch s {
	case SaveIdle:
		return "IDLE"
	case SaveSaving:
		return "SAVING"
	case SaveSuccess:
		return "SUCCESS"
	case SaveError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SaveStatus drives the end-of-call UI and retry affordance.
type SaveStatus struct {
	State SaveState `json:"state"`
	// MeetingID is the backend-confirmed record identifier on success.
	MeetingID string `json:"meetingId,omitempty"`
	// Message carries the failure message on error.
	Message string `json:"message,omitempty"`
	// NeedsAuthentication is set when the save was deferred because no
	// authenticated user was available.
	NeedsAuthentication bool `json:"needsAuthentication,omitempty"`
}

// SessionTransition is published on every connection state change.
type SessionTransition struct {
	EventType string `json:"eventType"`
	RoomID    string `json:"roomId"`
	SessionID string `json:"sessionId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Attempt   int    `json:"attempt,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// MeetingSaved is published when an end-of-call save reaches a confirmed
// outcome.
type MeetingSaved struct {
	EventType    string `json:"eventType"`
	RoomID       string `json:"roomId"`
	MeetingID    string `json:"meetingId"`
	Participants int    `json:"participants"`
	Lines        int    `json:"lines"`
	Timestamp    int64  `json:"timestamp"`
}
