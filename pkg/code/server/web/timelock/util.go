package timelock

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/code-payments/code-timelock-server/pkg/code/timelock"
)

const (
	successJsonKey = "success"
	errorJsonKey   = "error"
)

var (
	errRateLimited = errors.New("rate limited")
)

type GenericApiResponseBody map[string]any

func NewGenericApiSuccessResponseBody() GenericApiResponseBody {
	return map[string]any{
		successJsonKey: true,
	}
}

func NewGenericApiFailureResponseBody(err error) GenericApiResponseBody {
	return map[string]any{
		successJsonKey: false,
		errorJsonKey:   err.Error(),
	}
}

func (b *GenericApiResponseBody) ToString() string {
	marshalled, _ := json.Marshal(b)
	return string(marshalled)
}

// HandleExecutorErrorInWebContext maps an executor error to a status code and
// the error that's safe to return to the client.
func HandleExecutorErrorInWebContext(err error) (int, error) {
	if err == nil {
		return http.StatusOK, nil
	}

	var invocationErr *timelock.TargetInvocationError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, timelock.ErrInvalidDelay),
		errors.Is(err, timelock.ErrInvalidNonce),
		errors.Is(err, timelock.ErrInvalidAddress),
		errors.Is(err, timelock.ErrInvalidInstruction),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest, err
	case errors.Is(err, timelock.ErrTimelockNotFound),
		errors.Is(err, timelock.ErrTransactionNotFound):
		return http.StatusNotFound, err
	case errors.Is(err, timelock.ErrTimelockExists),
		errors.Is(err, timelock.ErrTransactionExists),
		errors.Is(err, timelock.ErrAlreadyExecuted):
		return http.StatusConflict, err
	case errors.Is(err, timelock.ErrDelayNotElapsed):
		return http.StatusPreconditionFailed, err
	case errors.As(err, &invocationErr):
		return http.StatusBadGateway, err
	default:
		return http.StatusInternalServerError, errors.New("internal server error")
	}
}
