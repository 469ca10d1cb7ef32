package scd2

import (
	"fmt"
	"time"

	"github.com/bruin-data/historian/pkg/record"
)

// OrderingViolation is an incoming record that cannot be applied without breaking the version intervals of its
// key. It is never applied and needs manual reconciliation.
type OrderingViolation struct {
	Key              record.Key
	ChangeTimestamp  time.Time
	CurrentValidFrom time.Time
	Reason           string
}

func (o *OrderingViolation) Error() string {
	if o.CurrentValidFrom.IsZero() {
		return fmt.Sprintf("ordering violation for key '%s' at %s: %s", o.Key, o.ChangeTimestamp.Format(time.RFC3339), o.Reason)
	}

	return fmt.Sprintf(
		"ordering violation for key '%s': change timestamp %s, current version valid from %s: %s",
		o.Key, o.ChangeTimestamp.Format(time.RFC3339), o.CurrentValidFrom.Format(time.RFC3339), o.Reason,
	)
}
