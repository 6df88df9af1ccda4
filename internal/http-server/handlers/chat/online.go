package chat

import (
	"ShopTalk/internal/lib/api/response"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// OnlineCustomers returns the agent-facing roster: connected customers plus
// offline sessions still waiting on an answer.
func OnlineCustomers(_ *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(handler.Roster()))
	}
}
