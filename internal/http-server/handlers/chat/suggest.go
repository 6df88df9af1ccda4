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

type SuggestResult struct {
	SessionID string `json:"session_id"`
	Draft     string `json:"draft"`
}

// SuggestReply drafts a reply to the session's latest customer message for
// the agent to edit and send.
func SuggestReply(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.chat")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		sessionID := chi.URLParam(r, "id")

		draft, err := handler.Suggest(r.Context(), sessionID)
		if err != nil {
			switch {
			case errors.Is(err, entity.ErrAssistDisabled):
				render.Status(r, http.StatusNotImplemented)
				render.JSON(w, r, response.Error("Reply suggestions are not enabled"))
			case errors.Is(err, entity.ErrSessionNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("Session not found"))
			default:
				logger.Error("suggest reply", slog.String("session_id", sessionID), sl.Err(err))
				render.JSON(w, r, response.Error(fmt.Sprintf("Drafting reply failed: %v", err)))
			}
			return
		}

		render.JSON(w, r, response.Ok(SuggestResult{SessionID: sessionID, Draft: draft}))
	}
}
