package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meetwire/signal-service/internal/domain"
	"github.com/meetwire/signal-service/internal/service"
	httpmw "github.com/meetwire/signal-service/internal/transport/http/middleware"
)

type Handler struct {
	sessionSvc *service.SessionService
	streamSvc  *service.StreamService
}

func NewHandler(sessions *service.SessionService, streams *service.StreamService) *Handler {
	return &Handler{
		sessionSvc: sessions,
		streamSvc:  streams,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "name is required"})
		return
	}
	creatorID := httpmw.ParticipantIDFromCtx(r.Context())
	if creatorID == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing participant id"})
		return
	}

	sess, err := h.sessionSvc.Create(r.Context(), req.Name, creatorID, req.MaxParticipants)
	if err != nil {
		slog.Error("handler.CreateSession:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, sessionItem(sess))
}

// GET /sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionSvc.ListActive(r.Context())
	resp := SessionsListResponse{Items: make([]SessionItem, 0, len(sessions))}
	for i := range sessions {
		resp.Items = append(resp.Items, sessionItem(&sessions[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.sessionSvc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "session not found"})
			return
		}
		slog.Error("handler.GetSession:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, sessionItem(sess))
}

// GET /sessions/{id}/participants
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	items, err := h.sessionSvc.Participants(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "session not found"})
			return
		}
		slog.Error("handler.GetParticipants:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ParticipantsResponse{Items: items})
}

// POST /sessions/{id}/join
func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	participantID := httpmw.ParticipantIDFromCtx(r.Context())
	if participantID == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing participant id"})
		return
	}

	if err := h.sessionSvc.AddParticipant(r.Context(), sessionID, participantID); err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "session not found"})
		case errors.Is(err, domain.ErrSessionFull):
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: "session full"})
		case errors.Is(err, domain.ErrSessionEnded):
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: "session ended"})
		default:
			slog.Error("handler.JoinSession:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, JoinSessionResponse{
		SessionID:     sessionID,
		ParticipantID: participantID,
	})
}

// POST /sessions/{id}/leave
func (h *Handler) LeaveSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	participantID := httpmw.ParticipantIDFromCtx(r.Context())
	if participantID == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing participant id"})
		return
	}

	if err := h.sessionSvc.RemoveParticipant(r.Context(), sessionID, participantID); err != nil {
		slog.Error("handler.LeaveSession:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// POST /sessions/{id}/end
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	participantID := httpmw.ParticipantIDFromCtx(r.Context())

	sess, err := h.sessionSvc.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "session not found"})
			return
		}
		slog.Error("handler.EndSession:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if sess.CreatorID != participantID {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "only the creator can end the session"})
		return
	}

	if err := h.sessionSvc.End(r.Context(), sessionID); err != nil {
		slog.Error("handler.EndSession:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

// GET /sessions/{id}/streams
func (h *Handler) ListSessionStreams(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	streams := h.streamSvc.ListBySession(r.Context(), sessionID)
	resp := StreamsListResponse{Items: make([]StreamItem, 0, len(streams))}
	for i := range streams {
		resp.Items = append(resp.Items, streamItem(&streams[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /streams/{id}
func (h *Handler) GetStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.streamSvc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrStreamNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "stream not found"})
			return
		}
		slog.Error("handler.GetStream:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, streamItem(st))
}

// POST /streams/{id}/stop
func (h *Handler) StopStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.streamSvc.Stop(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrStreamNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "stream not found"})
			return
		}
		slog.Error("handler.StopStream:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// PUT /streams/{id}/quality
func (h *Handler) SetStreamQuality(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req SetQualityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	st, err := h.streamSvc.SetQuality(r.Context(), id, domain.StreamQuality(req.Quality))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrStreamNotFound):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "stream not found"})
		case errors.Is(err, domain.ErrStreamEnded):
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: "stream ended"})
		case errors.Is(err, domain.ErrBadQuality):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid quality"})
		default:
			slog.Error("handler.SetStreamQuality:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, streamItem(st))
}
