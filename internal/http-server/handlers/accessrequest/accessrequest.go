package accessrequest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"meetpin/entity"
	"meetpin/lib/api/response"
	"meetpin/lib/apperr"
	"meetpin/lib/sl"
)

type Core interface {
	ValidateAccessRequest(ctx context.Context, accessRequestId string) (*entity.AccessRequest, error)
}

func Validate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.accessrequest"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		access, err := handler.ValidateAccessRequest(r.Context(), id)
		if err != nil {
			logger.Error("validate access request", sl.Err(err))
			render.Status(r, apperr.Status(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("access request validated", slog.String("status", string(access.Status)))

		render.JSON(w, r, response.Ok(access))
	}
}
