package save

import (
	"context"
	"testing"

	"meeting-session-service/internal/models"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStore_PutGetClear(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, found, err := s.Get(ctx); err != nil || found {
		t.Fatalf("expected empty store, found=%v err=%v", found, err)
	}

	payload := &models.PendingMeetingSave{
		RoomID:         "demo-room",
		RoomName:       "Demo",
		Transcript:     []string{"Alice: hi"},
		Participants:   []string{"Alice", "Bob"},
		IdempotencyKey: "key-1",
	}
	if err := s.Put(ctx, payload); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, found, err := s.Get(ctx)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got.RoomID != "demo-room" || got.IdempotencyKey != "key-1" {
		t.Errorf("unexpected payload: %+v", got)
	}
	if len(got.Transcript) != 1 || len(got.Participants) != 2 {
		t.Errorf("unexpected payload contents: %+v", got)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, found, _ := s.Get(ctx); found {
		t.Error("expected store empty after clear")
	}
}

func TestBadgerStore_Put_OverwritesPrevious(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Put(ctx, &models.PendingMeetingSave{RoomID: "room-a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, &models.PendingMeetingSave{RoomID: "room-b"}); err != nil {
		t.Fatal(err)
	}

	got, found, err := s.Get(ctx)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	// At most one pending save exists per profile.
	if got.RoomID != "room-b" {
		t.Errorf("expected latest payload, got %s", got.RoomID)
	}
}

func TestBadgerStore_CaptureJournal(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, found, err := s.GetCapture(ctx); err != nil || found {
		t.Fatalf("expected no journaled capture, found=%v err=%v", found, err)
	}

	if err := s.PutCapture(ctx, []byte("raw-audio")); err != nil {
		t.Fatalf("put capture: %v", err)
	}
	audio, found, err := s.GetCapture(ctx)
	if err != nil || !found {
		t.Fatalf("get capture: found=%v err=%v", found, err)
	}
	if string(audio) != "raw-audio" {
		t.Errorf("unexpected audio: %q", audio)
	}

	if err := s.DeleteCapture(ctx); err != nil {
		t.Fatalf("delete capture: %v", err)
	}
	if _, found, _ := s.GetCapture(ctx); found {
		t.Error("expected journal cleared")
	}
}

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenBadgerStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, &models.PendingMeetingSave{RoomID: "demo-room"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := OpenBadgerStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, found, err := s2.Get(ctx)
	if err != nil || !found {
		t.Fatalf("expected payload to survive reopen, found=%v err=%v", found, err)
	}
	if got.RoomID != "demo-room" {
		t.Errorf("unexpected payload: %+v", got)
	}
}
