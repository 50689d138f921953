package checkout

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-checkout/internal/coupon"
)

// Step is one stage of the linear checkout flow.
type Step string

const (
	StepCustomerInfo Step = "customer_info"
	StepPayment      Step = "payment"
	StepReview       Step = "review"
	// StepSubmitted is absorbing: the only way out is the error rollback to
	// review when the backend rejects the order, which happens before the
	// machine ever enters this step.
	StepSubmitted Step = "submitted"
)

func (s Step) String() string { return string(s) }

// IsTerminal reports whether the session has reached its absorbing state.
func (s Step) IsTerminal() bool { return s == StepSubmitted }

// PaymentMethod is one of the fixed settlement options. The engine is
// agnostic to settlement mechanics; each method just maps to a distinct
// downstream path at the backend.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMobileWallet   PaymentMethod = "mobile_wallet"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

// Valid reports whether m is a member of the enumerated set.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentMobileWallet, PaymentBankTransfer:
		return true
	}
	return false
}

// CustomerInfo is the buyer data captured on the first step.
// Email is optional; the rest is required to advance.
type CustomerInfo struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

func (c CustomerInfo) validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	}
	if strings.TrimSpace(c.Phone) == "" {
		errs = append(errs, FieldError{Field: "phone", Message: "phone is required"})
	}
	if strings.TrimSpace(c.Address) == "" {
		errs = append(errs, FieldError{Field: "address", Message: "address is required"})
	}
	if email := strings.TrimSpace(c.Email); email != "" && !strings.Contains(email, "@") {
		errs = append(errs, FieldError{Field: "email", Message: "email is not valid"})
	}
	return errs
}

// Session is the mutable state of one buyer's walk through checkout.
// It is created when checkout begins, edited by step transitions and field
// updates, and discarded on successful submission or cart abandonment.
type Session struct {
	ID            uuid.UUID
	Step          Step
	Customer      CustomerInfo
	PaymentMethod PaymentMethod
	Coupon        *coupon.Descriptor

	// IdempotencyKey is minted once at session start and reused across
	// submission retries so the backend can deduplicate.
	IdempotencyKey string

	CreatedAt time.Time
}
