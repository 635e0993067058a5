// Package google provides a Google Cloud Speech-to-Text transcription
// client.
package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"meeting-session-service/internal/observability/logging"
	"meeting-session-service/internal/observability/metrics"
)

const provider = "google"

// Config holds recognition parameters.
type Config struct {
	LanguageCode string
	SampleRateHz int
	Timeout      time.Duration
}

// DefaultConfig returns recognition defaults.
func DefaultConfig() Config {
	return Config{
		LanguageCode: "en-US",
		SampleRateHz: 16000,
		Timeout:      30 * time.Second,
	}
}

// Client implements transcribe.Client using Google Cloud Speech-to-Text.
type Client struct {
	client  *speech.Client
	cfg     Config
	metrics *metrics.Metrics
}

// New creates a new Google transcription client.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
func New(ctx context.Context, cfg Config, m *metrics.Metrics) (*Client, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{client: c, cfg: cfg, metrics: m}, nil
}

// Transcribe sends the audio blob for batch recognition and joins the top
// alternatives of all results into one text.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(c.cfg.SampleRateHz),
			LanguageCode:    c.cfg.LanguageCode,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	c.metrics.RecordTranscription(time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordTranscriptionError(provider, errorType(err))
		return "", fmt.Errorf("speech recognize: %w", err)
	}

	var parts []string
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		parts = append(parts, r.Alternatives[0].Transcript)
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	logger := logging.WithComponent("transcribe")
	logger.Debug().
		Int("audioBytes", len(audio)).
		Int("results", len(resp.Results)).
		Msg("transcription completed")
	return text, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}

// errorType maps a gRPC status code to a coarse metrics label.
func errorType(err error) string {
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return "timeout"
	case codes.ResourceExhausted:
		return "quota"
	case codes.Unauthenticated, codes.PermissionDenied:
		return "auth"
	case codes.Unavailable:
		return "unavailable"
	default:
		return "other"
	}
}
