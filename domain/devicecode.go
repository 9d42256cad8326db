package domain

import (
	"context"
	"time"
)

// DeviceCodeStatus is the lifecycle state of a device authorization request.
// Approval and denial are terminal and mutually exclusive; expiry is detected
// lazily at poll or exchange time.
type DeviceCodeStatus string

const (
	DeviceCodeStatusPending  DeviceCodeStatus = "pending"
	DeviceCodeStatusApproved DeviceCodeStatus = "approved"
	DeviceCodeStatusDenied   DeviceCodeStatus = "denied"
)

// DeviceCode holds a device authorization request (RFC 8628). The device
// code is stored hashed; the user code is stored normalized (uppercase,
// hyphen stripped) so lookups are case- and punctuation-insensitive.
type DeviceCode struct {
	ID             string           `bson:"_id" json:"id"`
	DeviceCodeHash string           `bson:"device_code_hash" json:"-"`
	UserCode       string           `bson:"user_code" json:"user_code"`
	ClientID       string           `bson:"client_id" json:"client_id"` // client entity id
	Scopes         []string         `bson:"scopes" json:"scopes"`
	Status         DeviceCodeStatus `bson:"status" json:"status"`
	Interval       int              `bson:"interval" json:"interval"` // polling interval, seconds
	ExpiresAt      time.Time        `bson:"expires_at" json:"expires_at"`
	CreatedAt      time.Time        `bson:"created_at" json:"created_at"`
	LastPolledAt   time.Time        `bson:"last_polled_at,omitempty" json:"last_polled_at,omitempty"`
	ApprovedAt     *time.Time       `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	DeniedAt       *time.Time       `bson:"denied_at,omitempty" json:"denied_at,omitempty"`
	GrantID        string           `bson:"grant_id,omitempty" json:"grant_id,omitempty"`
	SubjectID      string           `bson:"subject_id,omitempty" json:"subject_id,omitempty"` // approving subject
}

// Expired reports whether the request is past its expiry at the given instant.
func (d *DeviceCode) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// DeviceCodeRepository persists device authorization requests.
type DeviceCodeRepository interface {
	Create(ctx context.Context, code *DeviceCode) error
	FindByDeviceCodeHash(ctx context.Context, hash string) (*DeviceCode, error)
	// FindByUserCode looks up by normalized user code.
	FindByUserCode(ctx context.Context, userCode string) (*DeviceCode, error)
	// Update persists status transitions, grant linkage and interval changes.
	Update(ctx context.Context, code *DeviceCode) error
	UpdateLastPolled(ctx context.Context, id string, at time.Time, interval int) error
	DeleteExpired(ctx context.Context) error
}
