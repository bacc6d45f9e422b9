package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/angelmondragon/streetmed-backend/pkg/logger"
	"github.com/angelmondragon/streetmed-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	WriteSuccessMessage(w, status, "", data)
}

func WriteSuccessMessage(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Status: types.StatusSuccess, Message: message, Data: data})
}

// WriteAlreadyDone answers a repeated request that changed nothing. The reason travels in code
// so clients can tell it apart from a first success.
func WriteAlreadyDone(w http.ResponseWriter, err error, data any) {
	typed := pkgerrors.As(err)
	payload := types.SuccessEnvelope{Status: types.StatusSuccess, Data: data}
	if typed != nil {
		payload.Code = string(typed.Reason())
		payload.Message = typed.Message()
	}
	writeJSON(w, http.StatusOK, payload)
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if m := typed.Message(); meta.ExposeMessage && m != "" {
		msg = m
	}

	payload := types.ErrorEnvelope{
		Status:    types.StatusError,
		Code:      string(typed.Reason()),
		Kind:      string(typed.Code()),
		Message:   msg,
		Retryable: typed.Retryable(),
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Details = details
		}
	}

	if logg != nil {
		fields := pkgerrors.Dump(err).Fields()
		fields["status"] = meta.HTTPStatus

		ctx = logg.WithFields(ctx, fields)
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

// encodeFailure is written when a payload cannot be marshalled, so callers
// never receive a half-written body.
var encodeFailure = []byte(`{"status":"error","code":"INTERNAL_ERROR","kind":"INTERNAL_ERROR","message":"internal server error","retryable":true}` + "\n")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(encodeFailure)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
