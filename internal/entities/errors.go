package entities

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrStaleReservation is returned when a reservation token no longer points
// at a pending record. Completing twice with the same token is a no-op.
var ErrStaleReservation = errors.New("reservation is stale or unknown")

// DeliveryError wraps a failure of the delivery transport. Transient
// failures become retry-eligible after the ledger cooldown, permanent ones
// terminate the attempt.
type DeliveryError struct {
	Transient bool
	Cause     error
}

func (e *DeliveryError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("delivery failed (%s): %v", kind, e.Cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// ArtifactError reports that an application artifact could not be built,
// usually because required profile data is missing.
type ArtifactError struct {
	Reason string
}

func (e *ArtifactError) Error() string {
	return "could not build application artifact: " + e.Reason
}
