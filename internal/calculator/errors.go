package calculator

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by this package wraps exactly one
// of these, so callers can map a failure with errors.Is without knowing the
// specific reason.
var (
	ErrValidation    = errors.New("validation failed")
	ErrAuthorization = errors.New("not authorized")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
)

// Split validation errors.
var (
	ErrNotAMember     = fmt.Errorf("%w: participant is not a member of the group", ErrValidation)
	ErrAmountMismatch = fmt.Errorf("%w: the sum of split amounts must equal the total expense amount", ErrValidation)
	ErrInvalidAmount  = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrDuplicateSplit = fmt.Errorf("%w: member has more than one split", ErrValidation)
	ErrNoSplits       = fmt.Errorf("%w: expense must have at least one split", ErrValidation)
)

// Settlement errors.
var (
	ErrExpenseNotFound = fmt.Errorf("%w: expense", ErrNotFound)
	ErrForbidden       = fmt.Errorf("%w: payer is not a member of the expense's group", ErrAuthorization)
	ErrPayeeMismatch   = fmt.Errorf("%w: settlement must be to the person who paid for the expense", ErrConflict)
	ErrNoShare         = fmt.Errorf("%w: payer has no share in this expense", ErrConflict)
	ErrAlreadyPaid     = fmt.Errorf("%w: share of this expense is already paid", ErrConflict)
	ErrExceedsShare    = fmt.Errorf("%w: settlement amount exceeds the remaining share", ErrConflict)
)
