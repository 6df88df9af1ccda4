package chat

import (
	"ShopTalk/internal/lib/api/response"
	"ShopTalk/internal/lib/sl"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// ListSessions returns every session, newest activity first. With a
// customer_id query parameter it narrows to that customer's sessions.
func ListSessions(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.chat")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		customerID := r.URL.Query().Get("customer_id")

		var err error
		var sessions interface{}
		if customerID != "" {
			sessions, err = handler.CustomerSessions(customerID)
		} else {
			sessions, err = handler.Sessions()
		}
		if err != nil {
			logger.Error("list sessions", sl.Err(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Listing sessions failed: %v", err)))
			return
		}

		render.JSON(w, r, response.Ok(sessions))
	}
}
