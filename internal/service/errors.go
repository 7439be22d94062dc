package service

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/storage"
)

var (
	errNotMember      = fmt.Errorf("%w: you are not a member of this group", calculator.ErrAuthorization)
	errGroupNotFound  = fmt.Errorf("%w: group", calculator.ErrNotFound)
	errSettleForSelf  = fmt.Errorf("%w: you can only settle expenses for yourself", calculator.ErrAuthorization)
	errCannotDelete   = fmt.Errorf("%w: only the payer or the group creator can delete an expense", calculator.ErrAuthorization)
	errCreatorOnly    = fmt.Errorf("%w: only the group creator can delete the group", calculator.ErrAuthorization)
	errCreatorLeaving = fmt.Errorf("%w: the group creator cannot leave the group, delete it instead", calculator.ErrConflict)
	errAlreadyMember  = fmt.Errorf("%w: user is already a member of this group", calculator.ErrConflict)
	errHasSettlements = fmt.Errorf("%w: cannot delete an expense that has settlements", calculator.ErrConflict)
)

func errMissing(field string) error {
	return fmt.Errorf("%w: %s required", calculator.ErrValidation, field)
}

// toConnectError maps an error category to its RPC code. The message of
// internal errors is not sent to the client.
func toConnectError(err error) *connect.Error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	switch {
	case errors.Is(err, calculator.ErrValidation):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, calculator.ErrAuthorization):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, calculator.ErrConflict), errors.Is(err, storage.ErrHasSettlements):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, calculator.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	default:
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}

// category names an error for metrics labels.
func category(err error) string {
	switch {
	case errors.Is(err, calculator.ErrValidation):
		return "validation"
	case errors.Is(err, calculator.ErrAuthorization):
		return "authorization"
	case errors.Is(err, calculator.ErrConflict):
		return "conflict"
	case errors.Is(err, calculator.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
