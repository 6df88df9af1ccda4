package chat

import (
	"ShopTalk/entity"
	"ShopTalk/internal/lib/api/response"
	"ShopTalk/internal/lib/sl"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// EndSession closes a session. Ending an already ended session succeeds,
// so client retries are harmless.
func EndSession(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.chat")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		sessionID := chi.URLParam(r, "id")

		if err := handler.End(sessionID); err != nil {
			if errors.Is(err, entity.ErrSessionNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("Session not found"))
				return
			}
			logger.Error("end session", slog.String("session_id", sessionID), sl.Err(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Ending session failed: %v", err)))
			return
		}

		render.JSON(w, r, response.Ok("Session ended"))
	}
}
