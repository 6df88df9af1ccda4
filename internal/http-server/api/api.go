package api

import (
	"ShopTalk/internal/config"
	"ShopTalk/internal/http-server/handlers/chat"
	"ShopTalk/internal/http-server/handlers/errors"
	"ShopTalk/internal/http-server/handlers/key"
	"ShopTalk/internal/http-server/middleware/authenticate"
	"ShopTalk/internal/http-server/middleware/timeout"
	"ShopTalk/internal/lib/sl"
	"ShopTalk/internal/ws"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	ws.Authenticator
	ws.FrameHandler
	chat.Core
	key.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	// Websocket endpoints stay outside the REST middleware chain: upgrades
	// must not run under a request timeout, and customers connect without a
	// token. Agent sockets authenticate with the token query parameter.
	router.Get("/ws/chat", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeCustomer(handler, log, w, r)
	})
	router.Get("/ws/agent", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeAgent(handler, handler, log, w, r)
	})

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(timeout.Timeout(15))
		v1.Use(render.SetContentType(render.ContentTypeJSON))
		v1.Use(authenticate.New(log, handler))

		v1.Route("/chat", func(r chi.Router) {
			r.Get("/sessions", chat.ListSessions(log, handler))
			r.Post("/sessions", chat.CreateSession(log, handler))
			r.Get("/sessions/{id}/messages", chat.SessionHistory(log, handler, conf.Chat.HistoryLimit))
			r.Post("/sessions/{id}/messages", chat.SendMessage(log, handler))
			r.Post("/sessions/{id}/read", chat.MarkRead(log, handler))
			r.Post("/sessions/{id}/end", chat.EndSession(log, handler))
			r.Delete("/sessions/{id}", chat.DeleteSession(log, handler))
			r.Post("/sessions/{id}/suggest", chat.SuggestReply(log, handler))
			r.Get("/online", chat.OnlineCustomers(log, handler))
		})
		v1.Route("/key", func(r chi.Router) {
			r.Post("/new", key.Generate(log, handler))
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:  router,
		ErrorLog: httpLog,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIP, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
