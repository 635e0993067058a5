package wsbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"meeting-session-service/internal/widget"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// widgetHost is a minimal scripted widget host for one connection.
type widgetHost struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	room     string
	commands []commandFrame
	ready    chan struct{}
}

func newWidgetHost(t *testing.T) (*httptest.Server, *widgetHost) {
	t.Helper()
	h := &widgetHost{ready: make(chan struct{})}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.mu.Lock()
		h.conn = conn
		h.room = r.URL.Query().Get("room")
		h.mu.Unlock()
		close(h.ready)

		for {
			var frame commandFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			h.mu.Lock()
			h.commands = append(h.commands, frame)
			h.mu.Unlock()
		}
	}))
	t.Cleanup(srv.Close)
	return srv, h
}

func (h *widgetHost) send(t *testing.T, frame eventFrame) {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.conn.WriteJSON(frame); err != nil {
		t.Fatalf("host send: %v", err)
	}
}

func (h *widgetHost) commandNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.commands))
	for i, c := range h.commands {
		out[i] = c.Name
	}
	return out
}

type eventCollector struct {
	mu     sync.Mutex
	events []widget.Event
}

func (c *eventCollector) listener(ev widget.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *eventCollector) waitFor(t *testing.T, typ widget.EventType) widget.Event {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		for _, ev := range c.events {
			if ev.Type == typ {
				c.mu.Unlock()
				return ev
			}
		}
		c.mu.Unlock()
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("event %v never arrived", typ)
	return widget.Event{}
}

func (c *eventCollector) count(typ widget.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func dial(t *testing.T, srv *httptest.Server, h *widgetHost, c *eventCollector) *Bridge {
	t.Helper()
	f := NewFactory("ws" + strings.TrimPrefix(srv.URL, "http"))
	w, err := f.New(context.Background(), widget.Config{
		RoomID:      "room-1",
		RoomName:    "Standup",
		DisplayName: "Alice",
	}, c.listener)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	select {
	case <-h.ready:
	case <-time.After(time.Second):
		t.Fatal("host never accepted the connection")
	}
	return w.(*Bridge)
}

func TestDialPassesRoomParams(t *testing.T) {
	srv, h := newWidgetHost(t)
	c := &eventCollector{}
	b := dial(t, srv, h, c)
	defer b.Dispose()

	h.mu.Lock()
	room := h.room
	h.mu.Unlock()
	if room != "room-1" {
		t.Errorf("room query param = %q, want room-1", room)
	}
}

func TestFramesDispatchAsEvents(t *testing.T) {
	srv, h := newWidgetHost(t)
	c := &eventCollector{}
	b := dial(t, srv, h, c)
	defer b.Dispose()

	h.send(t, eventFrame{Type: "joined"})
	c.waitFor(t, widget.EventJoined)

	h.send(t, eventFrame{Type: "participant-joined", Participant: "Bob"})
	if ev := c.waitFor(t, widget.EventParticipantJoined); ev.Participant != "Bob" {
		t.Errorf("participant = %q, want Bob", ev.Participant)
	}

	h.send(t, eventFrame{Type: "chat-message", Sender: "Bob", Text: "hi"})
	if ev := c.waitFor(t, widget.EventChatMessage); ev.Sender != "Bob" || ev.Text != "hi" {
		t.Errorf("chat event = %+v", ev)
	}

	h.send(t, eventFrame{Type: "error", Code: widget.CodeAccessDenied, Message: "denied"})
	if ev := c.waitFor(t, widget.EventError); !widget.IsConfigError(ev.Code) {
		t.Errorf("error code %q not a config error", ev.Code)
	}
}

func TestUnknownFramesIgnored(t *testing.T) {
	srv, h := newWidgetHost(t)
	c := &eventCollector{}
	b := dial(t, srv, h, c)
	defer b.Dispose()

	h.send(t, eventFrame{Type: "telemetry"})
	h.send(t, eventFrame{Type: "joined"})
	c.waitFor(t, widget.EventJoined)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) != 1 {
		t.Errorf("got %d events, want 1 (unknown frame leaked through)", len(c.events))
	}
}

func TestMediaStateSnapshot(t *testing.T) {
	srv, h := newWidgetHost(t)
	c := &eventCollector{}
	b := dial(t, srv, h, c)
	defer b.Dispose()

	h.send(t, eventFrame{Type: "media-state", AudioMuted: true})
	h.send(t, eventFrame{Type: "joined"}) // fence: media frame processed first
	c.waitFor(t, widget.EventJoined)

	if m := b.Media(); !m.AudioMuted || m.VideoMuted {
		t.Errorf("media = %+v, want audio muted only", m)
	}
}

func TestCommandsReachHost(t *testing.T) {
	srv, h := newWidgetHost(t)
	c := &eventCollector{}
	b := dial(t, srv, h, c)
	defer b.Dispose()

	if err := b.ExecuteCommand(context.Background(), widget.CommandKeepAlive); err != nil {
		t.Fatalf("keep-alive: %v", err)
	}
	if err := b.ExecuteCommand(context.Background(), widget.CommandHangup); err != nil {
		t.Fatalf("hangup: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(h.commandNames()) == 2 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	names := h.commandNames()
	if len(names) != 2 || names[0] != widget.CommandKeepAlive || names[1] != widget.CommandHangup {
		t.Errorf("host received %v", names)
	}
}

func TestConnectionLossEmitsLeft(t *testing.T) {
	srv, h := newWidgetHost(t)
	c := &eventCollector{}
	b := dial(t, srv, h, c)
	defer b.Dispose()

	h.mu.Lock()
	h.conn.Close()
	h.mu.Unlock()

	c.waitFor(t, widget.EventLeft)
}

func TestDisposeSilencesBridge(t *testing.T) {
	srv, h := newWidgetHost(t)
	c := &eventCollector{}
	b := dial(t, srv, h, c)

	if err := b.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if err := b.Dispose(); err != nil {
		t.Fatalf("second Dispose: %v", err)
	}

	// The closed connection must not surface as a Left event.
	time.Sleep(50 * time.Millisecond)
	if n := c.count(widget.EventLeft); n != 0 {
		t.Errorf("disposed bridge emitted %d left events", n)
	}

	if err := b.ExecuteCommand(context.Background(), widget.CommandProbe); err == nil {
		t.Error("command on disposed bridge succeeded")
	}
}
