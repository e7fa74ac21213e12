package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"meetpin/entity"
	"meetpin/lib/api/response"
	"meetpin/lib/apperr"
	"meetpin/lib/sl"
)

type Core interface {
	AdmitAnonymous(ctx context.Context, req *entity.AdmitAnonymousRequest) (*entity.AccessRequest, error)
	UserDialInCode(ctx context.Context, waitingRoomId, profileId, meetingPin string) (string, error)
}

// AdmitAnonymous handles an anonymous attendee asking to enter a meeting's
// waiting room. A zero-value result means the meeting owner is not enrolled
// in the enhanced experience; that is a 200, not an error.
func AdmitAnonymous(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		var req entity.AdmitAnonymousRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(
			sl.Secret("passcode", req.Passcode),
			slog.String("conference_id", req.ConferenceId),
		)

		access, err := handler.AdmitAnonymous(r.Context(), &req)
		if err != nil {
			logger.Error("admit anonymous", sl.Err(err))
			render.Status(r, apperr.Status(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		if access.IsZero() {
			logger.Debug("enhanced experience not enabled for pin owner")
		} else {
			logger.Debug("access request created",
				slog.String("access_request_id", access.AccessRequestId))
		}

		render.JSON(w, r, response.Ok(access))
	}
}

func DialInCode(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		var req entity.DialInCodeRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(
			slog.String("waiting_room_id", req.WaitingRoomId),
			slog.String("profile_id", req.ProfileId),
		)

		code, err := handler.UserDialInCode(r.Context(), req.WaitingRoomId, req.ProfileId, req.MeetingPin)
		if err != nil {
			logger.Error("allocate dial-in code", sl.Err(err))
			render.Status(r, apperr.Status(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("dial-in code allocated")

		render.JSON(w, r, response.Ok(map[string]string{"dial_in_code": code}))
	}
}

func requestLogger(log *slog.Logger, r *http.Request) *slog.Logger {
	return log.With(
		sl.Module("http.handlers.session"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}
