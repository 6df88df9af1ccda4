package chat

import (
	"ShopTalk/entity"
	"ShopTalk/internal/lib/api/response"
	"ShopTalk/internal/lib/sl"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// SessionHistory returns a session's transcript slice in persisted order.
// limit and offset come from query parameters; limit falls back to the
// configured default.
func SessionHistory(log *slog.Logger, handler Core, defaultLimit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.chat")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		sessionID := chi.URLParam(r, "id")

		limit := defaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		offset := 0
		if raw := r.URL.Query().Get("offset"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				offset = parsed
			}
		}

		messages, err := handler.History(sessionID, limit, offset)
		if err != nil {
			if errors.Is(err, entity.ErrSessionNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("Session not found"))
				return
			}
			logger.Error("session history", slog.String("session_id", sessionID), sl.Err(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Loading history failed: %v", err)))
			return
		}

		render.JSON(w, r, response.Ok(messages))
	}
}
