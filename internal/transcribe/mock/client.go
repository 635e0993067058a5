// Package mock provides a scripted transcription client for tests and
// local runs without cloud credentials.
package mock

import (
	"context"
	"sync"
)

// Client implements transcribe.Client with scripted results.
type Client struct {
	mu      sync.Mutex
	text    string
	err     error
	calls   int
	lastLen int
}

// New creates a client that returns text for every call.
func New(text string) *Client {
	return &Client{text: text}
}

// NewFailing creates a client that fails every call with err.
func NewFailing(err error) *Client {
	return &Client{err: err}
}

// Transcribe returns the scripted result.
func (c *Client) Transcribe(_ context.Context, audio []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lastLen = len(audio)
	if c.err != nil {
		return "", c.err
	}
	return c.text, nil
}

// Calls returns how many times Transcribe was invoked.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// LastAudioLen returns the size of the most recently submitted audio.
func (c *Client) LastAudioLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLen
}
