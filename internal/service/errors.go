package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation                 = errors.New("validation failed")
	ErrDuplicateAccount           = errors.New("user already exists with this email")
	ErrInvalidReferralCode        = errors.New("invalid referral code")
	ErrReferralLinkConflict       = errors.New("registration failed while creating referral")
	ErrUnrecoverableInconsistency = errors.New("unrecoverable inconsistency")
	ErrPurchaseRecord             = errors.New("purchase failed while creating purchase record")
	ErrAccountNotFound            = errors.New("user not found")
	ErrInvalidCreds               = errors.New("invalid email or password")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// PartialCreditError describes a converted referral where at least one of the two
// credit increments failed. The link is already marked credited and is never revisited,
// so the record must carry enough to repair balances by hand.
type PartialCreditError struct {
	LinkID      string
	ReferrerID  string
	ReferredID  string
	Amount      int64
	ReferrerErr error
	ReferredErr error
}

// FailedSide reports which increment failed: "referrer", "referred" or "both".
func (e *PartialCreditError) FailedSide() string {
	switch {
	case e.ReferrerErr != nil && e.ReferredErr != nil:
		return "both"
	case e.ReferrerErr != nil:
		return "referrer"
	default:
		return "referred"
	}
}

func (e *PartialCreditError) Error() string {
	return fmt.Sprintf("partial credit award on link %s: referrer=%s referred=%s amount=%d failed=%s (referrer err: %v, referred err: %v)",
		e.LinkID, e.ReferrerID, e.ReferredID, e.Amount, e.FailedSide(), e.ReferrerErr, e.ReferredErr)
}

func (e *PartialCreditError) Unwrap() []error {
	var errs []error
	if e.ReferrerErr != nil {
		errs = append(errs, e.ReferrerErr)
	}
	if e.ReferredErr != nil {
		errs = append(errs, e.ReferredErr)
	}
	return errs
}

// InconsistencyError is returned when the compensating delete after a failed referral
// link insert itself fails, leaving an orphan account behind.
type InconsistencyError struct {
	AccountID       string
	Cause           error
	CompensationErr error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("orphan account %s: referral link insert failed (%v) and compensating delete failed (%v)",
		e.AccountID, e.Cause, e.CompensationErr)
}

func (e *InconsistencyError) Unwrap() []error {
	return []error{ErrUnrecoverableInconsistency, ErrReferralLinkConflict, e.Cause, e.CompensationErr}
}
