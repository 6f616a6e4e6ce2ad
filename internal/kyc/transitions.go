package kyc

import (
	"fmt"

	"cred/internal/domain"
	"cred/pkg/errors"
)

// statusTransition is one allowed edge in the lifecycle state machine.
type statusTransition struct {
	From domain.KYCStatus
	To   domain.KYCStatus
}

// allowedTransitions enumerates every legal edge. REJECTED and EXPIRED are
// terminal: re-entering the lifecycle requires a fresh enrollment, which
// creates a new PENDING record rather than mutating the old one.
var allowedTransitions = []statusTransition{
	{domain.KYCStatusPending, domain.KYCStatusVerified},
	{domain.KYCStatusPending, domain.KYCStatusRejected},

	{domain.KYCStatusVerified, domain.KYCStatusSuspended},
	{domain.KYCStatusVerified, domain.KYCStatusExpired},

	{domain.KYCStatusSuspended, domain.KYCStatusVerified},
}

// validateTransition returns ErrInvalidTransition for any edge not in the
// table, and ErrAlreadyFinalized when re-verifying a verified record.
func validateTransition(from, to domain.KYCStatus) error {
	if from == domain.KYCStatusVerified && to == domain.KYCStatusVerified {
		return errors.ErrAlreadyFinalized
	}
	for _, t := range allowedTransitions {
		if t.From == from && t.To == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, from, to)
}
