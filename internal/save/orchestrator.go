package save

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meeting-session-service/internal/diagnostics"
	"meeting-session-service/internal/models"
	"meeting-session-service/internal/observability/logging"
	"meeting-session-service/internal/observability/metrics"
)

// StatusListener receives save status changes; it drives the end-of-call
// UI and retry affordance.
type StatusListener func(models.SaveStatus)

// SavedPublisher is notified of confirmed saves. Optional.
type SavedPublisher interface {
	PublishMeetingSaved(ctx context.Context, ev models.MeetingSaved) error
}

// Orchestrator guarantees that once recording was started during a call,
// the meeting record is durably persisted: remote on success, local
// pending-save otherwise. Retries are strictly user-initiated.
type Orchestrator struct {
	store     Store
	persister Persister
	identity  Identity
	publisher SavedPublisher
	recorder  *diagnostics.Recorder
	metrics   *metrics.Metrics
	log       zerolog.Logger

	mu       sync.Mutex
	payload  *models.PendingMeetingSave
	status   models.SaveStatus
	onStatus StatusListener
}

// New creates an orchestrator. publisher may be nil.
func New(store Store, persister Persister, identity Identity, publisher SavedPublisher, recorder *diagnostics.Recorder, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		store:     store,
		persister: persister,
		identity:  identity,
		publisher: publisher,
		recorder:  recorder,
		metrics:   m,
		log:       logging.WithComponent("save"),
	}
}

// SetStatusListener registers the status callback.
func (o *Orchestrator) SetStatusListener(l StatusListener) {
	o.mu.Lock()
	o.onStatus = l
	o.mu.Unlock()
}

// Status returns the current save status.
func (o *Orchestrator) Status() models.SaveStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// SaveOnEnd runs the end-of-call save. When recording was never started,
// nothing happens at all: no status change, no local write.
func (o *Orchestrator) SaveOnEnd(ctx context.Context, roomID, roomName string, transcript, participants []string, recordingStarted bool) models.SaveStatus {
	if !recordingStarted {
		o.metrics.RecordSaveAttempt("skipped", 0)
		o.recorder.Record("save-skipped", map[string]any{"roomId": roomID})
		return models.SaveStatus{State: models.SaveIdle}
	}

	payload := &models.PendingMeetingSave{
		RoomID:       roomID,
		RoomName:     roomName,
		Transcript:   transcript,
		Participants: participants,
		// Minted once per payload and reused across retries.
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      time.Now().UnixMilli(),
	}
	o.mu.Lock()
	o.payload = payload
	o.mu.Unlock()

	o.setStatus(models.SaveStatus{State: models.SaveSaving})

	userID, ok := o.identity.CurrentUser(ctx)
	if !ok {
		return o.deferForAuth(ctx, payload)
	}
	return o.submit(ctx, payload, userID)
}

// Retry re-runs the persistence call with the retained payload. The
// payload is re-read from local storage when the in-memory copy was lost
// (e.g. after a restart).
func (o *Orchestrator) Retry(ctx context.Context) models.SaveStatus {
	o.mu.Lock()
	payload := o.payload
	o.mu.Unlock()

	if payload == nil {
		stored, found, err := o.store.Get(ctx)
		if err != nil {
			return o.setStatus(models.SaveStatus{State: models.SaveError, Message: err.Error()})
		}
		if !found {
			return o.setStatus(models.SaveStatus{State: models.SaveError, Message: "no pending save to retry"})
		}
		payload = stored
		o.mu.Lock()
		o.payload = payload
		o.mu.Unlock()
	}

	o.setStatus(models.SaveStatus{State: models.SaveSaving})
	userID, ok := o.identity.CurrentUser(ctx)
	if !ok {
		return o.deferForAuth(ctx, payload)
	}
	return o.submit(ctx, payload, userID)
}

// SubmitPending auto-submits a pending save left by an earlier session.
// Returns the resulting status and whether a submission was attempted.
func (o *Orchestrator) SubmitPending(ctx context.Context) (models.SaveStatus, bool) {
	payload, found, err := o.store.Get(ctx)
	if err != nil {
		o.log.Error().Err(err).Msg("failed to read pending save")
		return o.Status(), false
	}
	if !found {
		o.metrics.SetPendingSave(false)
		return o.Status(), false
	}
	o.metrics.SetPendingSave(true)

	userID, ok := o.identity.CurrentUser(ctx)
	if !ok {
		// Still unauthenticated; the payload stays put.
		return o.setStatus(models.SaveStatus{State: models.SaveError, NeedsAuthentication: true,
			Message: "sign in to save the pending meeting record"}), false
	}

	o.mu.Lock()
	o.payload = payload
	o.mu.Unlock()
	o.log.Info().Str("roomId", payload.RoomID).Msg("auto-submitting pending meeting save")
	o.setStatus(models.SaveStatus{State: models.SaveSaving})
	return o.submit(ctx, payload, userID), true
}

// Discard abandons the pending save: clears local storage and resets the
// status. Only an explicit user action reaches this.
func (o *Orchestrator) Discard(ctx context.Context) error {
	if err := o.store.Clear(ctx); err != nil {
		return err
	}
	o.mu.Lock()
	o.payload = nil
	o.mu.Unlock()
	o.metrics.SetPendingSave(false)
	o.recorder.Record("save-discarded", nil)
	o.setStatus(models.SaveStatus{State: models.SaveIdle})
	return nil
}

// deferForAuth persists the payload locally and reports the auth-needed
// error state. The payload survives until a later authenticated session
// submits it or the user discards it.
func (o *Orchestrator) deferForAuth(ctx context.Context, payload *models.PendingMeetingSave) models.SaveStatus {
	if err := o.store.Put(ctx, payload); err != nil {
		o.log.Error().Err(err).Msg("failed to persist pending save locally")
		return o.setStatus(models.SaveStatus{State: models.SaveError, Message: err.Error()})
	}
	o.metrics.SavesDeferred.Inc()
	o.metrics.RecordSaveAttempt("needs_auth", 0)
	o.metrics.SetPendingSave(true)
	o.recorder.Record("save-deferred-auth", map[string]any{"roomId": payload.RoomID})
	return o.setStatus(models.SaveStatus{
		State:               models.SaveError,
		NeedsAuthentication: true,
		Message:             "sign in to save the meeting record",
	})
}

func (o *Orchestrator) submit(ctx context.Context, payload *models.PendingMeetingSave, userID string) models.SaveStatus {
	log := logging.WithSave(payload.RoomID, payload.IdempotencyKey)

	start := time.Now()
	meetingID, err := o.persister.CreateMeeting(ctx, payload, userID)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		// Retain the payload durably; never silently discard.
		if perr := o.store.Put(ctx, payload); perr != nil {
			log.Error().Err(perr).Msg("failed to retain pending save after failure")
		} else {
			o.metrics.SetPendingSave(true)
		}
		o.metrics.RecordSaveAttempt("error", elapsed)
		o.recorder.Recordf("save-failed", "%v", err)
		log.Warn().Err(err).Msg("meeting save failed, payload retained for retry")
		return o.setStatus(models.SaveStatus{State: models.SaveError, Message: err.Error()})
	}

	if cerr := o.store.Clear(ctx); cerr != nil {
		log.Error().Err(cerr).Msg("failed to clear pending save after success")
	} else {
		o.metrics.SetPendingSave(false)
	}
	o.metrics.RecordSaveAttempt("success", elapsed)
	o.recorder.Record("save-confirmed", map[string]any{"meetingId": meetingID})
	log.Info().Str("meetingId", meetingID).Msg("meeting record saved")

	if o.publisher != nil {
		ev := models.MeetingSaved{
			EventType:    "meeting.saved",
			RoomID:       payload.RoomID,
			MeetingID:    meetingID,
			Participants: len(payload.Participants),
			Lines:        len(payload.Transcript),
			Timestamp:    time.Now().UnixMilli(),
		}
		if perr := o.publisher.PublishMeetingSaved(ctx, ev); perr != nil {
			log.Warn().Err(perr).Msg("failed to publish meeting-saved event")
		}
	}

	o.mu.Lock()
	o.payload = nil
	o.mu.Unlock()
	return o.setStatus(models.SaveStatus{State: models.SaveSuccess, MeetingID: meetingID})
}

func (o *Orchestrator) setStatus(s models.SaveStatus) models.SaveStatus {
	o.mu.Lock()
	o.status = s
	l := o.onStatus
	o.mu.Unlock()
	if l != nil {
		l(s)
	}
	return s
}
