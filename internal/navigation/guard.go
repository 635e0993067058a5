// Package navigation intercepts page-leave requests while a call is
// active. Leaving a live room without the end-of-call path would drop the
// meeting record, so the guard asks for confirmation and, when the user
// does leave, runs the proper termination first.
package navigation

import (
	"context"

	"github.com/rs/zerolog"

	"meeting-session-service/internal/diagnostics"
	"meeting-session-service/internal/observability/logging"
	"meeting-session-service/internal/session"
)

// Decision is the user's answer to a leave prompt.
type Decision int

const (
	// DecisionStay - remain in the call.
	DecisionStay Decision = iota
	// DecisionLeave - end the call and navigate away.
	DecisionLeave
)

// Confirmer prompts the user when a leave request arrives mid-call.
type Confirmer interface {
	ConfirmLeave(ctx context.Context, roomName string) Decision
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, roomName string) Decision

// ConfirmLeave calls f.
func (f ConfirmerFunc) ConfirmLeave(ctx context.Context, roomName string) Decision {
	return f(ctx, roomName)
}

// Session is the slice of the connection controller the guard needs.
type Session interface {
	State() session.State
	TerminationRequested() bool
	EndCall(ctx context.Context)
}

// Guard decides whether a navigation away from the room page may proceed.
type Guard struct {
	session  Session
	roomName string
	confirm  Confirmer
	recorder *diagnostics.Recorder
	log      zerolog.Logger
}

// New creates a guard for one session. confirm may be nil, in which case
// mid-call leave requests are always denied.
func New(s Session, roomName string, confirm Confirmer, recorder *diagnostics.Recorder) *Guard {
	return &Guard{
		session:  s,
		roomName: roomName,
		confirm:  confirm,
		recorder: recorder,
		log:      logging.WithComponent("navigation"),
	}
}

// RequestLeave handles a navigation attempt. It returns true when the
// navigation may proceed. Outside an active call it always allows; during
// one it prompts, and a confirmed leave runs the end-of-call path before
// allowing.
func (g *Guard) RequestLeave(ctx context.Context) bool {
	if !g.active() {
		return true
	}

	g.recorder.Record("leave-intercepted", map[string]any{"room": g.roomName})
	if g.confirm == nil {
		g.log.Debug().Msg("leave denied: no confirmer")
		return false
	}
	if g.confirm.ConfirmLeave(ctx, g.roomName) == DecisionStay {
		g.recorder.Record("leave-declined", nil)
		return false
	}

	g.recorder.Record("leave-confirmed", nil)
	g.session.EndCall(ctx)
	return true
}

// active reports whether the session is in a state worth protecting. A
// user-requested termination already runs the end path, so nothing is
// lost by navigating.
func (g *Guard) active() bool {
	if g.session.TerminationRequested() {
		return false
	}
	switch g.session.State() {
	case session.StateConnected, session.StateReconnecting, session.StateDisconnected:
		return true
	default:
		return false
	}
}
