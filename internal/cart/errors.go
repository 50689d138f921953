package cart

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrItemNotFound is returned when an operation targets a line item id that
// is not in the cart.
var ErrItemNotFound = errors.New("cart item not found")

// ErrRemovalNotConfirmed is returned when a quantity update of zero or less
// arrives without the explicit confirm flag. An accidental zero must never
// silently delete a line.
var ErrRemovalNotConfirmed = errors.New("quantity of zero removes the item and requires confirmation")

// SyncError wraps a failed remote cart sync. Local state stays authoritative
// for display; the caller surfaces the failure and may retry.
type SyncError struct {
	Op     string
	ItemID uuid.UUID
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("cart sync %s for item %s: %v", e.Op, e.ItemID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
