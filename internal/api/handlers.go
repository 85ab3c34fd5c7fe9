package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/common/validation"
	"shift-notify/internal/notify/dispatch"
	"shift-notify/internal/notify/trigger"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// handlePublishWeek handles POST /api/v1/weeks/{weekCode}/publish
func (s *Server) handlePublishWeek(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if !s.decode(w, r, publishSchema, &req) {
		return
	}

	ack, err := s.triggers.PublishWeek(r.Context(), trigger.WeekRequest{
		WeekCode:   chi.URLParam(r, "weekCode"),
		TemplateID: req.TemplateID,
		Channel:    req.Channel,
		Trigger:    dispatch.TriggerPublish,
	})
	s.respond(w, ack, err)
}

// handleNotifyWeek handles POST /api/v1/notifications/week
func (s *Server) handleNotifyWeek(w http.ResponseWriter, r *http.Request) {
	var req NotifyWeekRequest
	if !s.decode(w, r, weekSchema, &req) {
		return
	}

	ack, err := s.triggers.NotifyWeek(r.Context(), trigger.WeekRequest{
		WeekCode:   req.WeekCode,
		TemplateID: req.TemplateID,
		Channel:    req.Channel,
		Trigger:    dispatch.TriggerManual,
	})
	s.respond(w, ack, err)
}

// handleNotifyRecipients handles POST /api/v1/notifications/recipients
func (s *Server) handleNotifyRecipients(w http.ResponseWriter, r *http.Request) {
	var req NotifyRecipientsRequest
	if !s.decode(w, r, recipientsSchema, &req) {
		return
	}

	ack, err := s.triggers.NotifyRecipients(r.Context(), trigger.RecipientsRequest{
		RecipientIDs: req.RecipientIDs,
		WeekCode:     req.WeekCode,
		TemplateID:   req.TemplateID,
		Channel:      req.Channel,
		Trigger:      dispatch.TriggerManual,
	})
	s.respond(w, ack, err)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).String(),
	})
}

// handleReady handles GET /ready
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK
	for name, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	s.sendJSON(w, status, resp)
}

// decode validates the body against schema and unmarshals it into dst.
// It writes the error response itself and reports whether to continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema *validation.Schema, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || len(body) == 0 {
		s.sendError(w, http.StatusBadRequest, apperrors.NewValidationFailedError("request body is required"))
		return false
	}

	result, err := schema.ValidateJSON(body)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, apperrors.NewValidationFailedError("invalid JSON body"))
		return false
	}
	if !result.Valid {
		s.sendError(w, http.StatusBadRequest, apperrors.NewValidationFailedError(result.Summary()))
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		s.sendError(w, http.StatusBadRequest, apperrors.NewValidationFailedError(err.Error()))
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, ack *trigger.Ack, err error) {
	if err != nil {
		s.sendError(w, statusFor(err), err)
		return
	}
	s.sendJSON(w, http.StatusAccepted, ack)
}

func statusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeValidationFailed, apperrors.ErrCodeInvalidChannel, apperrors.ErrCodeTemplateInvalidType:
		return http.StatusBadRequest
	case apperrors.ErrCodeTemplateNotFound, apperrors.ErrCodeWeekNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeDuplicateDispatch:
		return http.StatusConflict
	case apperrors.ErrCodeDatabaseConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, err error) {
	resp := ErrorResponse{Error: err.Error()}
	if stdErr, ok := apperrors.AsStandard(err); ok {
		resp = ErrorResponse{Error: stdErr.Message, Code: string(stdErr.Code), Details: stdErr.Details}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", map[string]interface{}{"error": err.Error(), "status": status})
	}
	s.sendJSON(w, status, resp)
}
