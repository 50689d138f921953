package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyCart guards both session creation and final confirmation.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrOutOfStockItems blocks confirmation while unpurchasable lines
	// remain in the cart.
	ErrOutOfStockItems = errors.New("cart contains out-of-stock items")

	// ErrSubmitInFlight is returned when Confirm is called while a previous
	// submission is still waiting for the backend.
	ErrSubmitInFlight = errors.New("order submission already in flight")

	// ErrAlreadySubmitted is returned for any mutation after the session
	// reached its absorbing state.
	ErrAlreadySubmitted = errors.New("checkout already submitted")

	// ErrNotAtReview is returned when Confirm is called from an earlier step.
	ErrNotAtReview = errors.New("checkout is not at the review step")

	// ErrAwaitingConfirmation is returned when Next is called at review;
	// the only forward transition from review is Confirm.
	ErrAwaitingConfirmation = errors.New("review is the final step; confirm to submit")
)

// FieldError is a single field-scoped validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the full list of field errors for a rejected
// transition. The machine stays on its current step when returning one.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
