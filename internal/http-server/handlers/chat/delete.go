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

// DeleteSession removes a session together with its full transcript and
// tells every connected party to evict it.
func DeleteSession(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.chat")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		sessionID := chi.URLParam(r, "id")

		if err := handler.Delete(sessionID); err != nil {
			if errors.Is(err, entity.ErrSessionNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("Session not found"))
				return
			}
			logger.Error("delete session", slog.String("session_id", sessionID), sl.Err(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Deleting session failed: %v", err)))
			return
		}

		render.JSON(w, r, response.Ok("Session deleted"))
	}
}
