// Package transcribe defines the interface for remote transcription calls.
package transcribe

import "context"

// Client converts a finished audio capture into text. There is no retry
// built in: a failed call is reported and skipped, the call continues with
// whatever transcript text already exists.
type Client interface {
	// Transcribe sends the captured audio and returns the recognized text.
	Transcribe(ctx context.Context, audio []byte) (string, error)
}
