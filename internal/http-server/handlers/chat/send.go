package chat

import (
	"ShopTalk/entity"
	"ShopTalk/internal/lib/api/response"
	"ShopTalk/internal/lib/sl"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type SendRequest struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	SenderType string `json:"sender_type"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

type SendResult struct {
	Message   *entity.ChatMessage `json:"message"`
	Delivered bool                `json:"delivered"`
}

// SendMessage is the REST fallback for posting a message into a session.
// The message is persisted and forwarded exactly as on the live path; the
// delivered flag tells the caller whether anyone saw it in real time.
func SendMessage(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.chat")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		sessionID := chi.URLParam(r, "id")

		var req SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}

		logger = logger.With(
			slog.String("session_id", sessionID),
			slog.String("sender_id", req.SenderID),
		)

		msg, delivered, err := handler.SendMessage(
			sessionID, req.SenderID, req.SenderName, req.SenderType, req.ReceiverID, req.Content,
		)
		if err != nil {
			switch {
			case errors.Is(err, entity.ErrSessionNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("Session not found"))
			case errors.Is(err, entity.ErrSessionEnded):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.Error("Session has ended"))
			case errors.Is(err, entity.ErrEmptyContent), errors.Is(err, entity.ErrNoSession):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("Message content and session are required"))
			default:
				logger.Error("send message", sl.Err(err))
				render.JSON(w, r, response.Error(fmt.Sprintf("Sending message failed: %v", err)))
			}
			return
		}

		render.JSON(w, r, response.Ok(SendResult{Message: msg, Delivered: delivered}))
	}
}
