package mock

import (
	"context"
	"errors"
	"testing"
)

func TestTranscribe_ScriptedText(t *testing.T) {
	c := New("hello world")

	text, err := c.Transcribe(context.Background(), []byte("audio-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want 'hello world'", text)
	}
	if c.Calls() != 1 {
		t.Errorf("calls = %d, want 1", c.Calls())
	}
	if c.LastAudioLen() != len("audio-bytes") {
		t.Errorf("last audio len = %d, want %d", c.LastAudioLen(), len("audio-bytes"))
	}
}

func TestTranscribe_ScriptedFailure(t *testing.T) {
	scripted := errors.New("quota exceeded")
	c := NewFailing(scripted)

	_, err := c.Transcribe(context.Background(), []byte("audio"))
	if !errors.Is(err, scripted) {
		t.Fatalf("err = %v, want scripted error", err)
	}
	if c.Calls() != 1 {
		t.Errorf("calls = %d, want 1", c.Calls())
	}
}
