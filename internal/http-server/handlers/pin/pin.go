package pin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"meetpin/entity"
	"meetpin/lib/api/cont"
	"meetpin/lib/api/response"
	"meetpin/lib/apperr"
	"meetpin/lib/sl"
)

type Core interface {
	FindPin(ctx context.Context, code string) (*entity.Pin, error)
	CreatePin(ctx context.Context, req *entity.CreatePinRequest) (*entity.CreatePinResponse, error)
	ReclaimPin(ctx context.Context, req *entity.ReclaimPinRequest) (*entity.Pin, error)
	RecreatePin(ctx context.Context, req *entity.RecreatePinRequest) (*entity.CreatePinResponse, error)
	ExpirePin(ctx context.Context, code string) error
}

func Find(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		code := chi.URLParam(r, "code")
		pin, err := handler.FindPin(r.Context(), code)
		if err != nil {
			logger.Error("find pin", sl.Err(err))
			render.Status(r, apperr.Status(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("pin found", slog.String("pin_type", string(pin.Type)))

		render.JSON(w, r, response.Ok(pin))
	}
}

func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)
		if !requireManagePins(w, r, logger) {
			return
		}

		var req entity.CreatePinRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(
			slog.String("pin_type", req.PinType),
			slog.Int("entities_count", len(req.Entities)),
		)

		resp, err := handler.CreatePin(r.Context(), &req)
		if err != nil {
			logger.Error("create pin", sl.Err(err))
			render.Status(r, apperr.Status(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("pins created", slog.Int("allocated", len(resp.AllocatedPins)))

		render.JSON(w, r, response.Ok(resp))
	}
}

func Reclaim(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)
		if !requireManagePins(w, r, logger) {
			return
		}

		var req entity.ReclaimPinRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(sl.Secret("pin", req.Pin))

		pin, err := handler.ReclaimPin(r.Context(), &req)
		if err != nil {
			logger.Error("reclaim pin", sl.Err(err))
			render.Status(r, apperr.Status(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("pin reclaimed")

		render.JSON(w, r, response.Ok(pin))
	}
}

func Recreate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)
		if !requireManagePins(w, r, logger) {
			return
		}

		var req entity.RecreatePinRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(sl.Secret("pin", req.Pin))

		resp, err := handler.RecreatePin(r.Context(), &req)
		if err != nil {
			logger.Error("recreate pin", sl.Err(err))
			render.Status(r, apperr.Status(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("pin recreated")

		render.JSON(w, r, response.Ok(resp))
	}
}

func Expire(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)
		if !requireManagePins(w, r, logger) {
			return
		}

		code := chi.URLParam(r, "code")
		if err := handler.ExpirePin(r.Context(), code); err != nil {
			logger.Error("expire pin", sl.Err(err))
			render.Status(r, apperr.Status(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("pin expired")

		render.JSON(w, r, response.Ok(nil))
	}
}

// requireManagePins gates pin lifecycle mutations on the caller's grant.
func requireManagePins(w http.ResponseWriter, r *http.Request, logger *slog.Logger) bool {
	user := cont.GetUser(r.Context())
	if !user.CanManagePins {
		logger.Warn("user lacks manage-pins grant", slog.String("user", user.Username))
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("manage-pins grant required"))
		return false
	}
	return true
}

func requestLogger(log *slog.Logger, r *http.Request) *slog.Logger {
	return log.With(
		sl.Module("http.handlers.pin"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}
