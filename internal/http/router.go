// Package http exposes the session control and inspection API. It is the
// local surface a UI shell drives: session status, page-event injection,
// leave requests, and the end-of-call save controls.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"meeting-session-service/internal/diagnostics"
	"meeting-session-service/internal/lifecycle"
	"meeting-session-service/internal/models"
	"meeting-session-service/internal/navigation"
	"meeting-session-service/internal/recording"
	"meeting-session-service/internal/save"
	"meeting-session-service/internal/session"
)

// sessionStatus is the JSON shape of GET /v1/session.
type sessionStatus struct {
	SessionID        string            `json:"sessionId"`
	State            string            `json:"state"`
	Attempts         int               `json:"attempts"`
	Hidden           bool              `json:"hidden"`
	PendingReconnect bool              `json:"pendingReconnect"`
	Save             models.SaveStatus `json:"save"`
}

// Deps are the components the router exposes. Pipeline and Captures may be
// nil; the recording endpoints then report 404.
type Deps struct {
	Controller   *session.Controller
	NavGuard     *navigation.Guard
	Orchestrator *save.Orchestrator
	Recorder     *diagnostics.Recorder
	Pipeline     *recording.Pipeline
	Captures     recording.CaptureStore
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", func(w http.ResponseWriter, req *http.Request) {
			guard := d.Controller.Guard()
			writeJSON(w, http.StatusOK, sessionStatus{
				SessionID:        d.Controller.SessionID(),
				State:            d.Controller.State().String(),
				Attempts:         d.Controller.Attempts(),
				Hidden:           guard.Hidden(),
				PendingReconnect: guard.PendingReconnect(),
				Save:             d.Orchestrator.Status(),
			})
		})

		// Page events come from the hosting shell; this is the injection
		// point for visibility, focus, freeze and connectivity changes.
		r.Post("/session/page-event", func(w http.ResponseWriter, req *http.Request) {
			name := req.URL.Query().Get("type")
			ev, ok := lifecycle.ParsePageEvent(name)
			if !ok {
				http.Error(w, "unknown page event type", http.StatusBadRequest)
				return
			}
			d.Controller.Guard().HandlePageEvent(req.Context(), ev)
			w.WriteHeader(http.StatusAccepted)
		})

		r.Post("/session/end", func(w http.ResponseWriter, req *http.Request) {
			// End-of-call runs past the request lifetime; don't tie the
			// hangup and save to the client's connection.
			d.Controller.EndCall(context.WithoutCancel(req.Context()))
			writeJSON(w, http.StatusOK, map[string]string{
				"state": d.Controller.State().String(),
			})
		})

		r.Post("/session/leave", func(w http.ResponseWriter, req *http.Request) {
			allowed := d.NavGuard.RequestLeave(context.WithoutCancel(req.Context()))
			writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
		})

		if d.Pipeline != nil {
			r.Get("/recording", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{
					"recording":    d.Pipeline.Recording(),
					"everStarted":  d.Pipeline.EverStarted(),
					"lines":        len(d.Pipeline.Transcript()),
					"participants": d.Pipeline.Participants(),
				})
			})
			r.Post("/recording/start", func(w http.ResponseWriter, req *http.Request) {
				// A denied capture start is surfaced, never swallowed.
				if err := d.Pipeline.StartRecording(req.Context()); err != nil {
					http.Error(w, err.Error(), http.StatusConflict)
					return
				}
				w.WriteHeader(http.StatusAccepted)
			})
			r.Post("/recording/stop", func(w http.ResponseWriter, req *http.Request) {
				if err := d.Pipeline.StopRecording(context.WithoutCancel(req.Context()), d.Captures); err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				w.WriteHeader(http.StatusAccepted)
			})
		}

		r.Get("/save", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, d.Orchestrator.Status())
		})
		r.Post("/save/retry", func(w http.ResponseWriter, req *http.Request) {
			status := d.Orchestrator.Retry(context.WithoutCancel(req.Context()))
			writeJSON(w, http.StatusOK, status)
		})
		r.Post("/save/discard", func(w http.ResponseWriter, req *http.Request) {
			if err := d.Orchestrator.Discard(req.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/diagnostics", func(w http.ResponseWriter, _ *http.Request) {
			visibility := "visible"
			if d.Controller.Guard().Hidden() {
				visibility = "hidden"
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(d.Recorder.Report(visibility)))
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
