package chat

import (
	"ShopTalk/internal/lib/api/response"
	"ShopTalk/internal/lib/sl"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type CreateRequest struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
}

// CreateSession opens a session for the customer, or returns the existing
// active one. Repeating the call is safe.
func CreateSession(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.chat")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}
		if req.CustomerID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("customer_id is required"))
			return
		}

		logger = logger.With(slog.String("customer_id", req.CustomerID))

		session, created, err := handler.CreateOrResume(req.CustomerID, req.CustomerName)
		if err != nil {
			logger.Error("create session", sl.Err(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Creating session failed: %v", err)))
			return
		}

		if created {
			render.Status(r, http.StatusCreated)
			logger.Debug("session created", slog.String("session_id", session.ID))
		}

		render.JSON(w, r, response.Ok(session))
	}
}
