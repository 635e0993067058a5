package session

import "testing"

func TestMachine_InitialState(t *testing.T) {
	m := NewMachine()

	if m.State() != StateConnecting {
		t.Errorf("expected StateConnecting, got %v", m.State())
	}
	if m.IsTerminal() {
		t.Error("expected IsTerminal to be false")
	}
}

func TestMachine_ConnectingToConnected(t *testing.T) {
	m := NewMachine()

	if err := m.MarkConnected(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != StateConnected {
		t.Errorf("expected StateConnected, got %v", m.State())
	}
}

func TestMachine_CannotReconnectFromConnecting(t *testing.T) {
	m := NewMachine()

	// CONNECTING must never skip straight to RECONNECTING.
	if err := m.MarkReconnecting(); err != ErrNotReconnectable {
		t.Errorf("expected ErrNotReconnectable, got %v", err)
	}
	if m.State() != StateConnecting {
		t.Errorf("state must be unchanged, got %v", m.State())
	}
}

func TestMachine_VisibleDisconnectCycle(t *testing.T) {
	m := NewMachine()

	if err := m.MarkConnected(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.MarkDisconnected(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.MarkReconnecting(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.MarkConnected(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != StateConnected {
		t.Errorf("expected StateConnected, got %v", m.State())
	}
}

func TestMachine_DeferredReconnectFromConnected(t *testing.T) {
	m := NewMachine()

	if err := m.MarkConnected(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A disconnect deferred while hidden collapses into a single
	// CONNECTED -> RECONNECTING transition on visibility restore.
	if err := m.MarkReconnecting(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != StateReconnecting {
		t.Errorf("expected StateReconnecting, got %v", m.State())
	}
}

func TestMachine_DisconnectedTwice(t *testing.T) {
	m := NewMachine()

	if err := m.MarkDisconnected(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.MarkDisconnected(); err != ErrAlreadyDisconnected {
		t.Errorf("expected ErrAlreadyDisconnected, got %v", err)
	}
}

func TestMachine_End_IsTerminal(t *testing.T) {
	m := NewMachine()
	m.End()

	if m.State() != StateEnded {
		t.Errorf("expected StateEnded, got %v", m.State())
	}
	if err := m.MarkConnected(); err != ErrSessionTerminal {
		t.Errorf("expected ErrSessionTerminal, got %v", err)
	}
	if err := m.MarkReconnecting(); err != ErrSessionTerminal {
		t.Errorf("expected ErrSessionTerminal, got %v", err)
	}
	if m.Fail() {
		t.Error("Fail must not override ENDED")
	}
}

func TestMachine_Fail_IsTerminal(t *testing.T) {
	m := NewMachine()

	if !m.Fail() {
		t.Fatal("expected Fail to succeed")
	}
	if m.State() != StateFailed {
		t.Errorf("expected StateFailed, got %v", m.State())
	}
	if m.Fail() {
		t.Error("expected second Fail to report false")
	}
	if err := m.MarkDisconnected(); err != ErrSessionTerminal {
		t.Errorf("expected ErrSessionTerminal, got %v", err)
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateConnecting:   "CONNECTING",
		StateConnected:    "CONNECTED",
		StateDisconnected: "DISCONNECTED",
		StateReconnecting: "RECONNECTING",
		StateEnded:        "ENDED",
		StateFailed:       "FAILED",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}
