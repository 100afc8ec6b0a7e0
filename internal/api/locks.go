package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-locks/internal/audit"
	"github.com/nerrad567/gray-logic-locks/internal/bridges/smartlock"
	"github.com/nerrad567/gray-logic-locks/internal/lock"
)

// lockView is a lock status with its unavailability reason translated.
type lockView struct {
	lock.DeviceStatus
	ReasonMessage string `json:"reason_message,omitempty"`
}

// commandResponse is returned when a command was issued or was a no-op.
type commandResponse struct {
	DeviceID string `json:"device_id"`
	Command  string `json:"command"`
	Status   string `json:"status"`
}

func (s *Server) view(r *http.Request, st lock.DeviceStatus) lockView {
	v := lockView{DeviceStatus: st}
	if st.ReasonKey != "" {
		v.ReasonMessage = s.translate(requestLanguage(r, s.language), st.ReasonKey)
	}
	return v
}

// handleListLocks returns every owned lock, sorted by id.
func (s *Server) handleListLocks(w http.ResponseWriter, r *http.Request) {
	statuses := s.locks.Statuses()
	views := make([]lockView, 0, len(statuses))
	for _, st := range statuses {
		views = append(views, s.view(r, st))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"locks": views,
		"count": len(views),
	})
}

// handleGetLock returns one lock.
func (s *Server) handleGetLock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := s.locks.Status(id)
	if !ok {
		s.writeLockError(w, r, smartlock.ErrUnknownDevice)
		return
	}
	writeJSON(w, http.StatusOK, s.view(r, st))
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, "lock", func(ctx context.Context, id string) error {
		return s.locks.Command(ctx, id, smartlock.CapabilityLocked, true, audit.SourceAPI)
	})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, "unlock", func(ctx context.Context, id string) error {
		return s.locks.Command(ctx, id, smartlock.CapabilityLocked, false, audit.SourceAPI)
	})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, "open", func(ctx context.Context, id string) error {
		return s.locks.Command(ctx, id, smartlock.CapabilityOpen, true, audit.SourceAPI)
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, "sync", func(ctx context.Context, id string) error {
		return s.locks.Sync(ctx, id, audit.SourceAPI)
	})
}

// runCommand executes a lock command and answers 202 once it is issued.
// Settlement is reported later over the WebSocket.
func (s *Server) runCommand(w http.ResponseWriter, r *http.Request, command string, run func(context.Context, string) error) {
	id := chi.URLParam(r, "id")
	if err := run(r.Context(), id); err != nil {
		s.logger.Info("lock command rejected",
			"device_id", id,
			"command", command,
			"subject", subjectFrom(r.Context()),
			"error", err,
		)
		s.writeLockError(w, r, err)
		return
	}

	s.logger.Info("lock command accepted",
		"device_id", id,
		"command", command,
		"subject", subjectFrom(r.Context()),
	)
	writeJSON(w, http.StatusAccepted, commandResponse{
		DeviceID: id,
		Command:  command,
		Status:   string(smartlock.AckAccepted),
	})
}
