package recording

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"meeting-session-service/internal/diagnostics"
	"meeting-session-service/internal/observability/logging"
	"meeting-session-service/internal/observability/metrics"
	"meeting-session-service/internal/transcribe"
)

// EmptyTranscriptPlaceholder is saved when a call ends with recording
// started but no transcript text accumulated.
const EmptyTranscriptPlaceholder = "(no transcript captured)"

// CaptureStore journals finished-but-untranscribed audio so a crash cannot
// lose it, and hands a journaled capture back on a later start.
type CaptureStore interface {
	PutCapture(ctx context.Context, audio []byte) error
	GetCapture(ctx context.Context) ([]byte, bool, error)
	DeleteCapture(ctx context.Context) error
}

// Pipeline accumulates the call transcript and optionally captures local
// audio for transcription. It lives from widget initialization to the
// end-of-call save attempt.
type Pipeline struct {
	capture     Capture
	transcriber transcribe.Client
	recorder    *diagnostics.Recorder
	metrics     *metrics.Metrics
	log         zerolog.Logger

	mu           sync.Mutex
	everStarted  bool // latched for the remainder of the call
	recording    bool
	lines        []string
	participants map[string]struct{}
}

// New creates a pipeline. localName is the local user's display name and
// joins the participant set immediately.
func New(capture Capture, transcriber transcribe.Client, localName string, recorder *diagnostics.Recorder, m *metrics.Metrics) *Pipeline {
	p := &Pipeline{
		capture:      capture,
		transcriber:  transcriber,
		recorder:     recorder,
		metrics:      m,
		log:          logging.WithComponent("recording"),
		participants: make(map[string]struct{}),
	}
	if localName != "" {
		p.participants[localName] = struct{}{}
	}
	return p
}

// StartRecording begins local audio capture. A capture failure is returned
// to the caller as-is: the user asked for recording and must see why it
// did not start. On success the "recording was ever started" latch is set
// and never unset for the remainder of the call.
func (p *Pipeline) StartRecording(ctx context.Context) error {
	p.mu.Lock()
	if p.recording {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.capture.Start(ctx); err != nil {
		p.recorder.Recordf("recording-start-failed", "%v", err)
		return fmt.Errorf("start capture: %w", err)
	}

	p.mu.Lock()
	p.everStarted = true
	p.recording = true
	p.mu.Unlock()

	p.metrics.RecordingsStarted.Inc()
	p.recorder.Record("recording-started", nil)
	return nil
}

// StopRecording finalizes capture and transcribes the result. Safe to call
// when not recording. A transcription failure is returned so the caller
// can surface it, but the audio is first journaled to store (when given)
// so the capture is not lost; the call itself continues either way.
func (p *Pipeline) StopRecording(ctx context.Context, store CaptureStore) error {
	p.mu.Lock()
	if !p.recording {
		p.mu.Unlock()
		return nil
	}
	p.recording = false
	p.mu.Unlock()

	audio, err := p.capture.Stop(ctx)
	if err != nil {
		p.recorder.Recordf("recording-stop-failed", "%v", err)
		return fmt.Errorf("stop capture: %w", err)
	}
	p.recorder.Record("recording-stopped", map[string]any{"audioBytes": len(audio)})
	if len(audio) == 0 {
		return nil
	}
	return p.transcribeCapture(ctx, audio, store)
}

func (p *Pipeline) transcribeCapture(ctx context.Context, audio []byte, store CaptureStore) error {
	start := time.Now()
	text, err := p.transcriber.Transcribe(ctx, audio)
	p.metrics.RecordTranscription(time.Since(start).Seconds())
	if err != nil {
		if store != nil {
			if jerr := store.PutCapture(ctx, audio); jerr != nil {
				p.log.Error().Err(jerr).Msg("failed to journal untranscribed capture")
			}
		}
		p.recorder.Recordf("transcription-failed", "%v", err)
		return fmt.Errorf("transcribe capture: %w", err)
	}
	if text != "" {
		p.appendLine("recording", text)
	}
	return nil
}

// RecoverCapture transcribes a journaled capture left behind by a crashed
// prior session. Returns the recovered text and whether anything was
// found. The journal entry is cleared only after successful transcription.
func (p *Pipeline) RecoverCapture(ctx context.Context, store CaptureStore) (string, bool, error) {
	audio, ok, err := store.GetCapture(ctx)
	if err != nil {
		return "", false, fmt.Errorf("read journaled capture: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	p.log.Info().Int("audioBytes", len(audio)).Msg("recovered unsaved capture from prior session")

	text, err := p.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return "", true, fmt.Errorf("transcribe recovered capture: %w", err)
	}
	if err := store.DeleteCapture(ctx); err != nil {
		p.log.Error().Err(err).Msg("failed to clear journaled capture")
	}
	if text != "" {
		p.appendLine("recording", text)
		p.mu.Lock()
		p.everStarted = true
		p.mu.Unlock()
	}
	return text, true, nil
}

// EverStarted reports whether recording was started at least once during
// the call. This gates whether an end-of-call save happens at all.
func (p *Pipeline) EverStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.everStarted
}

// Recording reports whether capture is currently running.
func (p *Pipeline) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

// AppendChat appends a chat message to the transcript.
func (p *Pipeline) AppendChat(sender, text string) {
	p.appendLine("chat", formatLine(sender, text))
}

// AppendCaption appends a caption/transcription chunk from the widget.
func (p *Pipeline) AppendCaption(sender, text string) {
	p.appendLine("caption", formatLine(sender, text))
}

func (p *Pipeline) appendLine(source, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	p.mu.Lock()
	p.lines = append(p.lines, line)
	p.mu.Unlock()
	p.metrics.RecordTranscriptLine(source)
}

// AddParticipant records a display name. Membership is idempotent.
func (p *Pipeline) AddParticipant(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	p.mu.Lock()
	p.participants[name] = struct{}{}
	p.mu.Unlock()
}

// Transcript returns a copy of the accumulated lines, in arrival order.
func (p *Pipeline) Transcript() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.lines))
	copy(out, p.lines)
	return out
}

// TranscriptOrPlaceholder returns the transcript, or the placeholder line
// when nothing was accumulated.
func (p *Pipeline) TranscriptOrPlaceholder() []string {
	lines := p.Transcript()
	if len(lines) == 0 {
		return []string{EmptyTranscriptPlaceholder}
	}
	return lines
}

// Participants returns the accumulated display names, sorted.
func (p *Pipeline) Participants() []string {
	p.mu.Lock()
	out := make([]string, 0, len(p.participants))
	for name := range p.participants {
		out = append(out, name)
	}
	p.mu.Unlock()
	sort.Strings(out)
	return out
}

func formatLine(sender, text string) string {
	sender = strings.TrimSpace(sender)
	text = strings.TrimSpace(text)
	if sender == "" {
		return text
	}
	return sender + ": " + text
}
