package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/voyagen/fiootv/internal/cache"
	"github.com/voyagen/fiootv/internal/credentials"
	"github.com/voyagen/fiootv/internal/service"
)

type healthResponse struct {
	Status               string `json:"status"`
	SyncRunning          *bool  `json:"syncRunning,omitempty"`
	PendingNotifications *int64 `json:"pendingNotifications,omitempty"`
	Error                string `json:"error,omitempty"`
}

// handleHealth always answers 200; a Redis failure is reported as
// "degraded" because reads and forms still work without it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.deps.Redis != nil {
		running, err := cache.Held(r.Context(), s.deps.Redis, cache.SyncLockKey)
		if err == nil {
			var pending int64
			pending, err = cache.QueueLength(r.Context(), s.deps.Redis, cache.NotificationQueue)
			resp.SyncRunning, resp.PendingNotifications = &running, &pending
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("health: redis")
			resp = healthResponse{Status: "degraded", Error: err.Error()}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// --- channel directory ---

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := service.ResolveCategories(r.Context(), s.deps.Names, s.deps.Store, s.log)
	if err != nil {
		s.log.Error().Err(err).Msg("resolve categories")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": categories,
		"total":      len(categories),
	})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	listing, err := service.ListChannels(r.Context(), s.deps.Store, service.ChannelQuery{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		PageSize: s.cfg.ChannelPageSize,
	}, s.log)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// --- admin ---

func (s *Server) handleSyncInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Channel sync API. Use POST to start sync.",
		"endpoint": "/api/sync-channels",
	})
}

type syncResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	*service.Report
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	// A full sync outlives the server's write timeout and must not stop
	// when the admin closes the tab.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	ctx := context.WithoutCancel(r.Context())

	report, err := s.deps.Syncer.Run(ctx)
	switch {
	case errors.Is(err, cache.ErrLocked):
		writeJSON(w, http.StatusConflict, syncResponse{Error: "A channel sync is already running"})
		return
	case err != nil:
		s.log.Error().Err(err).Msg("sync")
		writeJSON(w, http.StatusInternalServerError, syncResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Success: true, Message: report.Message(), Report: report})
}

type cookieConfigResponse struct {
	Success  bool   `json:"success,omitempty"`
	Message  string `json:"message,omitempty"`
	Session  string `json:"session"`
	Cookie   string `json:"cookie"`
	Combined string `json:"combined"`
}

func (s *Server) handleGetCookieConfig(w http.ResponseWriter, _ *http.Request) {
	rec := s.deps.Credentials.Get()
	writeJSON(w, http.StatusOK, cookieConfigResponse{
		Session:  rec.Session,
		Cookie:   rec.Cookie,
		Combined: rec.Combined(),
	})
}

func (s *Server) handleSetCookieConfig(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	// Non-string values are rejected like missing ones.
	session, _ := body["session"].(string)
	cookie, _ := body["cookie"].(string)

	rec, err := s.deps.Credentials.Set(session, cookie)
	switch {
	case errors.Is(err, credentials.ErrSessionRequired), errors.Is(err, credentials.ErrCookieRequired):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error().Err(err).Msg("save credentials")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info().Msg("upstream credentials updated")
	writeJSON(w, http.StatusOK, cookieConfigResponse{
		Success:  true,
		Message:  "Session and cookie updated successfully",
		Session:  rec.Session,
		Cookie:   rec.Cookie,
		Combined: rec.Combined(),
	})
}

// --- storefront forms ---

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req service.OrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	order, err := service.SubmitOrder(r.Context(), s.deps.Store, s.deps.Notifier, req)
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	case err != nil:
		s.log.Error().Err(err).Msg("create order")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to save order", Details: persistDetails(err)})
		return
	}
	s.log.Info().Str("order_id", order.ID.String()).Str("plan", order.PlanID).Msg("order created")
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Order submitted successfully",
		"orderId": order.ID,
	})
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var req service.ContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	_, err := service.SubmitContact(r.Context(), s.deps.Store, s.deps.Notifier, req)
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	case err != nil:
		s.log.Error().Err(err).Msg("contact submission")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to save your message", Details: persistDetails(err)})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Thank you for reaching out. We'll get back to you soon.",
	})
}
