// Package lifecycle keeps a backgrounded session alive and coordinates
// recovery when the platform tears the widget down anyway.
package lifecycle

import "context"

// PageEvent is a platform lifecycle event observed by the guard.
type PageEvent int

const (
	// PageHidden - the page lost visibility.
	PageHidden PageEvent = iota
	// PageVisible - the page regained visibility.
	PageVisible
	// PageFocus - the window regained focus.
	PageFocus
	// PageBlur - the window lost focus.
	PageBlur
	// PageFreeze - the platform froze the page.
	PageFreeze
	// PageResume - the platform resumed a frozen page.
	PageResume
	// PageOnline - network connectivity returned.
	PageOnline
	// PageOffline - network connectivity was lost.
	PageOffline
)

// String returns the string representation of the event.
func (e PageEvent) String() string {
	switch e {
	case PageHidden:
		return "hidden"
	case PageVisible:
		return "visible"
	case PageFocus:
		return "focus"
	case PageBlur:
		return "blur"
	case PageFreeze:
		return "freeze"
	case PageResume:
		return "resume"
	case PageOnline:
		return "online"
	case PageOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// ParsePageEvent maps a wire name to its event. The second return is
// false for unknown names.
func ParsePageEvent(name string) (PageEvent, bool) {
	switch name {
	case "hidden":
		return PageHidden, true
	case "visible":
		return PageVisible, true
	case "focus":
		return PageFocus, true
	case "blur":
		return PageBlur, true
	case "freeze":
		return PageFreeze, true
	case "resume":
		return PageResume, true
	case "online":
		return PageOnline, true
	case "offline":
		return PageOffline, true
	default:
		return 0, false
	}
}

// WakeLock is the port for the platform screen wake lock. Implementations
// are best-effort: an error means the capability is unavailable or was
// denied, never that the session is broken.
type WakeLock interface {
	Acquire(ctx context.Context) error
	Release() error
	// OnRelease registers a callback invoked when the platform revokes the
	// lock outside an explicit Release. At most one callback is retained;
	// registering replaces the previous one.
	OnRelease(fn func())
}

// AudioKeeper is the port for the near-silent audio generator that makes
// the platform reluctant to suspend the page. Resume is called on restore
// events and periodically, since playback can be auto-suspended.
type AudioKeeper interface {
	Start(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop() error
}

// NoopWakeLock is used where the platform offers no wake lock.
type NoopWakeLock struct{}

// Acquire is a no-op.
func (NoopWakeLock) Acquire(context.Context) error { return nil }

// Release is a no-op.
func (NoopWakeLock) Release() error { return nil }

// OnRelease is a no-op; a missing wake lock is never revoked.
func (NoopWakeLock) OnRelease(func()) {}

// NoopAudioKeeper is used where the platform offers no audio output.
type NoopAudioKeeper struct{}

// Start is a no-op.
func (NoopAudioKeeper) Start(context.Context) error { return nil }

// Resume is a no-op.
func (NoopAudioKeeper) Resume(context.Context) error { return nil }

// Stop is a no-op.
func (NoopAudioKeeper) Stop() error { return nil }
