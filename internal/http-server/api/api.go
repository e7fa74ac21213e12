package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"meetpin/internal/config"
	"meetpin/internal/http-server/handlers/accessrequest"
	"meetpin/internal/http-server/handlers/errors"
	"meetpin/internal/http-server/handlers/pin"
	"meetpin/internal/http-server/handlers/session"
	"meetpin/internal/http-server/middleware/authenticate"
	"meetpin/internal/http-server/middleware/timeout"
	"meetpin/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	pin.Core
	session.Core
	accessrequest.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(authenticate.New(log, handler))
		rootApi.Route("/pin", func(p chi.Router) {
			p.Post("/", pin.Create(log, handler))
			p.Get("/{code}", pin.Find(log, handler))
			p.Delete("/{code}", pin.Expire(log, handler))
			p.Post("/reclaim", pin.Reclaim(log, handler))
			p.Post("/recreate", pin.Recreate(log, handler))
		})
		rootApi.Route("/session", func(s chi.Router) {
			s.Post("/anonymous", session.AdmitAnonymous(log, handler))
			s.Post("/dial-in-code", session.DialInCode(log, handler))
		})
		rootApi.Get("/access-request/{id}", accessrequest.Validate(log, handler))
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
