package save

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meeting-session-service/internal/models"
)

func testPayload() *models.PendingMeetingSave {
	return &models.PendingMeetingSave{
		RoomID:         "demo-room",
		RoomName:       "Demo",
		Transcript:     []string{"Alice: hi", "Bob: hello"},
		Participants:   []string{"Alice", "Bob"},
		IdempotencyKey: "key-42",
	}
}

func TestHTTPPersister_ConfirmedSuccess(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"meeting":{"id":"m1"}}`))
	}))
	defer srv.Close()

	p := NewHTTPPersister(srv.URL, time.Second)
	id, err := p.CreateMeeting(context.Background(), testPayload(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "m1" {
		t.Errorf("expected meeting id m1, got %s", id)
	}
	if gotKey != "key-42" {
		t.Errorf("expected idempotency key header, got %q", gotKey)
	}
}

func TestHTTPPersister_OKWithoutID_FailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"meeting":{}}`))
	}))
	defer srv.Close()

	p := NewHTTPPersister(srv.URL, time.Second)
	_, err := p.CreateMeeting(context.Background(), testPayload(), "user-1")
	if !errors.Is(err, ErrUnconfirmedSave) {
		t.Errorf("expected ErrUnconfirmedSave, got %v", err)
	}
}

func TestHTTPPersister_SuccessFalse_FailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"quota exceeded"}`))
	}))
	defer srv.Close()

	p := NewHTTPPersister(srv.URL, time.Second)
	_, err := p.CreateMeeting(context.Background(), testPayload(), "user-1")
	if !errors.Is(err, ErrUnconfirmedSave) {
		t.Errorf("expected ErrUnconfirmedSave, got %v", err)
	}
}

func TestHTTPPersister_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPPersister(srv.URL, time.Second)
	if _, err := p.CreateMeeting(context.Background(), testPayload(), "user-1"); err == nil {
		t.Error("expected error on HTTP 500")
	}
}

func TestHTTPPersister_NetworkError(t *testing.T) {
	p := NewHTTPPersister("http://127.0.0.1:1", time.Second)
	if _, err := p.CreateMeeting(context.Background(), testPayload(), "user-1"); err == nil {
		t.Error("expected network error")
	}
}
