// Package wsbridge implements the widget port against a remote widget host
// reachable over a websocket. Commands go out as JSON frames; widget events
// come back as JSON frames and are dispatched to the session listener.
package wsbridge

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"meeting-session-service/internal/observability/logging"
	"meeting-session-service/internal/widget"
)

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// commandFrame is an outbound frame.
type commandFrame struct {
	Type string   `json:"type"`
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

// eventFrame is an inbound frame. Fields are populated per event type;
// unrecognized types are dropped.
type eventFrame struct {
	Type        string `json:"type"`
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
	Participant string `json:"participant,omitempty"`
	Sender      string `json:"sender,omitempty"`
	Text        string `json:"text,omitempty"`
	AudioMuted  bool   `json:"audioMuted,omitempty"`
	VideoMuted  bool   `json:"videoMuted,omitempty"`
}

// Factory dials a widget host for each instance.
type Factory struct {
	// BaseURL is the websocket endpoint of the widget host, e.g.
	// ws://host:port/widget.
	BaseURL string
}

// NewFactory creates a websocket widget factory.
func NewFactory(baseURL string) *Factory {
	return &Factory{BaseURL: baseURL}
}

// New dials the widget host and starts the event read loop.
func (f *Factory) New(ctx context.Context, cfg widget.Config, l widget.Listener) (widget.Widget, error) {
	u, err := url.Parse(f.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse widget host url: %w", err)
	}
	q := u.Query()
	q.Set("room", cfg.RoomID)
	q.Set("roomName", cfg.RoomName)
	q.Set("displayName", cfg.DisplayName)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial widget host: %w", err)
	}

	b := &Bridge{
		conn:     conn,
		listener: l,
		log:      logging.WithComponent("wsbridge").With().Str("roomId", cfg.RoomID).Logger(),
	}
	go b.readLoop()
	return b, nil
}

// Bridge is one live widget instance behind a websocket connection.
type Bridge struct {
	conn     *websocket.Conn
	listener widget.Listener
	log      zerolog.Logger

	mu       sync.Mutex
	disposed bool
	media    widget.MediaState
}

// readLoop consumes frames until the connection closes or the bridge is
// disposed. A read error on a live bridge is translated into a Left event:
// from the session's point of view losing the bridge is losing the widget.
func (b *Bridge) readLoop() {
	for {
		var frame eventFrame
		if err := b.conn.ReadJSON(&frame); err != nil {
			b.mu.Lock()
			disposed := b.disposed
			b.mu.Unlock()
			if !disposed {
				b.log.Warn().Err(err).Msg("widget host connection lost")
				b.dispatch(widget.Event{Type: widget.EventLeft})
			}
			return
		}
		b.handleFrame(frame)
	}
}

func (b *Bridge) handleFrame(frame eventFrame) {
	switch frame.Type {
	case "joined":
		b.dispatch(widget.Event{Type: widget.EventJoined})
	case "left":
		b.dispatch(widget.Event{Type: widget.EventLeft})
	case "error":
		b.dispatch(widget.Event{
			Type:    widget.EventError,
			Code:    frame.Code,
			Message: frame.Message,
		})
	case "participant-joined":
		b.dispatch(widget.Event{
			Type:        widget.EventParticipantJoined,
			Participant: frame.Participant,
		})
	case "chat-message":
		b.dispatch(widget.Event{
			Type:   widget.EventChatMessage,
			Sender: frame.Sender,
			Text:   frame.Text,
		})
	case "caption-chunk":
		b.dispatch(widget.Event{
			Type:   widget.EventCaptionChunk,
			Sender: frame.Sender,
			Text:   frame.Text,
		})
	case "media-state":
		b.mu.Lock()
		b.media = widget.MediaState{AudioMuted: frame.AudioMuted, VideoMuted: frame.VideoMuted}
		b.mu.Unlock()
	default:
		// Unknown frame types are ignored, not errors.
		b.log.Debug().Str("frameType", frame.Type).Msg("ignoring unknown widget frame")
	}
}

func (b *Bridge) dispatch(ev widget.Event) {
	b.mu.Lock()
	disposed := b.disposed
	l := b.listener
	b.mu.Unlock()
	if disposed || l == nil {
		return
	}
	l(ev)
}

// ExecuteCommand sends a command frame to the widget host.
func (b *Bridge) ExecuteCommand(_ context.Context, name string, args ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return fmt.Errorf("widget instance disposed")
	}
	if err := b.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := b.conn.WriteJSON(commandFrame{Type: "command", Name: name, Args: args}); err != nil {
		return fmt.Errorf("send %s command: %w", name, err)
	}
	return nil
}

// Media returns the last mute snapshot pushed by the widget host.
func (b *Bridge) Media() widget.MediaState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.media
}

// Dispose closes the connection. Idempotent.
func (b *Bridge) Dispose() error {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return nil
	}
	b.disposed = true
	b.mu.Unlock()

	_ = b.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "disposed"),
		time.Now().Add(writeTimeout),
	)
	return b.conn.Close()
}
