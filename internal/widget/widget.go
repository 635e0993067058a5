// Package widget defines the port for the embedded conferencing widget.
// The widget is an opaque collaborator: it owns the actual audio/video
// connection and is consumed only through a small command/event surface.
package widget

import "context"

// EventType identifies a widget event. Unknown event types coming off the
// wire are ignored rather than surfaced.
type EventType int

const (
	// EventJoined - the widget successfully joined the conference.
	EventJoined EventType = iota
	// EventLeft - the widget left the conference (for any reason).
	EventLeft
	// EventError - the widget reported an error (e.g. access denied).
	EventError
	// EventParticipantJoined - a remote participant joined.
	EventParticipantJoined
	// EventChatMessage - a chat message arrived on the data channel.
	EventChatMessage
	// EventCaptionChunk - a caption/transcription chunk arrived.
	EventCaptionChunk
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventJoined:
		return "joined"
	case EventLeft:
		return "left"
	case EventError:
		return "error"
	case EventParticipantJoined:
		return "participant-joined"
	case EventChatMessage:
		return "chat-message"
	case EventCaptionChunk:
		return "caption-chunk"
	default:
		return "unknown"
	}
}

// Event is a tagged variant emitted by a widget instance. Only the fields
// relevant to the Type are populated.
type Event struct {
	Type EventType

	// EventError
	Code    string
	Message string

	// EventParticipantJoined
	Participant string

	// EventChatMessage / EventCaptionChunk
	Sender string
	Text   string
}

// Error codes the controller treats as configuration/permission problems.
// These are surfaced to the user immediately and never retried.
const (
	CodeAccessDenied    = "access-denied"
	CodeInvalidConfig   = "invalid-config"
	CodeMembersOnly     = "members-only"
	CodePasswordInvalid = "password-invalid"
)

// IsConfigError reports whether code identifies a configuration or
// permission failure rather than a connectivity failure.
func IsConfigError(code string) bool {
	switch code {
	case CodeAccessDenied, CodeInvalidConfig, CodeMembersOnly, CodePasswordInvalid:
		return true
	default:
		return false
	}
}

// Commands understood by ExecuteCommand.
const (
	// CommandHangup asks the widget to terminate the conference.
	CommandHangup = "hangup"
	// CommandKeepAlive sends an inert data-channel message so the underlying
	// transport is not treated as idle.
	CommandKeepAlive = "keepalive"
	// CommandProbe checks instance liveness; a non-nil error means the
	// instance no longer holds a usable connection.
	CommandProbe = "probe"
)

// MediaState is a best-effort snapshot of the widget's mute state. It is
// used for diagnostics only and is never authoritative.
type MediaState struct {
	AudioMuted bool
	VideoMuted bool
}

// Config describes the conference a widget instance should join.
type Config struct {
	RoomID      string
	RoomName    string
	DisplayName string
}

// Listener receives events from a widget instance. Invocations are
// serialized by the instance; a listener must not block.
type Listener func(Event)

// Widget is a single live instance of the conferencing widget.
type Widget interface {
	// ExecuteCommand sends a named command to the widget.
	ExecuteCommand(ctx context.Context, name string, args ...string) error

	// Media returns the current best-effort mute state.
	Media() MediaState

	// Dispose tears the instance down and releases its resources. After
	// Dispose returns no further events are delivered. Idempotent.
	Dispose() error
}

// Factory constructs widget instances. At most one live instance may exist
// per session; the caller disposes the previous instance before requesting
// a new one.
type Factory interface {
	New(ctx context.Context, cfg Config, l Listener) (Widget, error)
}
