// Package recording captures local audio on demand and accumulates the
// call transcript.
package recording

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Capture is the port for local microphone capture. Start fails loudly
// when the platform denies access; Stop finalizes and returns whatever was
// captured, possibly empty.
type Capture interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) ([]byte, error)
}

// FileCapture implements Capture by reading a prepared audio file on Stop.
// Used by headless runs and the demo client, where there is no microphone
// to open.
type FileCapture struct {
	Path string

	mu      sync.Mutex
	started bool
}

// Start verifies the file is readable, which stands in for the permission
// check a real microphone capture performs.
func (f *FileCapture) Start(context.Context) error {
	if _, err := os.Stat(f.Path); err != nil {
		return fmt.Errorf("audio source unavailable: %w", err)
	}
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

// Stop returns the file contents, or empty when Start was never called.
func (f *FileCapture) Stop(context.Context) ([]byte, error) {
	f.mu.Lock()
	started := f.started
	f.started = false
	f.mu.Unlock()
	if !started {
		return nil, nil
	}
	audio, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read audio source: %w", err)
	}
	return audio, nil
}
