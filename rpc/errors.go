package rpc

import (
	"context"
	"errors"
	"net/http"

	"pooledger/core/executor"
	"pooledger/core/state"
	"pooledger/native/poollend"
)

func submitStatus(err error) int {
	switch {
	case errors.Is(err, executor.ErrInvalidTx):
		return http.StatusBadRequest
	case errors.Is(err, executor.ErrReplay):
		return http.StatusConflict
	case errors.Is(err, executor.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func queryStatus(err error) int {
	switch {
	case errors.Is(err, state.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, executor.ErrWrongOwner):
		return http.StatusUnprocessableEntity
	}
	if poollend.KindOf(err) != poollend.KindUnknown {
		return http.StatusUnprocessableEntity
	}
	if executor.ClassifyError(err) != poollend.KindUnknown.String() {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// statusForKind maps a failed receipt's kind to the response status.
func statusForKind(kind string) int {
	switch kind {
	case poollend.KindMissingAuthorization.String(),
		poollend.KindRecordOwnershipMismatch.String(),
		poollend.KindVaultIdentityError.String():
		return http.StatusForbidden
	case poollend.KindInvalidInstruction.String():
		return http.StatusBadRequest
	case poollend.KindInvalidState.String():
		return http.StatusConflict
	case "ModulePaused":
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}
