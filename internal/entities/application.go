package entities

import "time"

type ApplicationState string

const (
	ApplicationPending      ApplicationState = "pending"
	ApplicationSubmitted    ApplicationState = "submitted"
	ApplicationAcknowledged ApplicationState = "acknowledged"
	ApplicationFailed       ApplicationState = "failed"
)

type ApplicationSource string

const (
	SourceManual    ApplicationSource = "manual"
	SourceAutoApply ApplicationSource = "auto_apply"
)

// ApplicationRecord is one submission attempt for a (user, job) pair. At most
// one non-superseded record exists per pair; a retry-eligible failed record
// may be superseded by a fresh attempt after the retry cooldown, a submitted,
// acknowledged or permanently failed one never is.
type ApplicationRecord struct {
	ID               int64 `gorm:"primaryKey"`
	UserID           int64
	JobID            int64
	State            ApplicationState
	Source           ApplicationSource
	ReservationToken string `gorm:"uniqueIndex"`
	Superseded       bool
	SubmittedAt      *time.Time
	LastTransitionAt time.Time
	FailureReason    string
	RetryEligible    bool
	DeliveryReceipt  string
	CreatedAt        time.Time
}

// Terminal reports whether the record can no longer transition on its own.
// A failed record is terminal for its own row; retrying produces a new row.
func (r ApplicationRecord) Terminal() bool {
	return r.State == ApplicationSubmitted ||
		r.State == ApplicationAcknowledged ||
		r.State == ApplicationFailed
}

// ApplicationArtifact is the rendered application handed to the delivery
// transport.
type ApplicationArtifact struct {
	UserID         int64
	JobID          int64
	RecipientEmail string
	ReplyTo        string
	Subject        string
	Body           string
}

// DeliveryReceipt identifies an accepted send at the transport.
type DeliveryReceipt struct {
	MessageID   string
	DeliveredAt time.Time
}
