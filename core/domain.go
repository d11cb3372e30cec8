package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidConfigStatusTransition  = errors.New("core: invalid config status transition")
	ErrInvalidBookingStatusTransition = errors.New("core: invalid booking status transition")
	ErrInvalidEntitlementStatus       = errors.New("core: invalid entitlement status")
	ErrInvalidSlotRule                = errors.New("core: invalid slot rule")
	ErrConfigNotFound                 = errors.New("core: module config not found")
	ErrBookingNotFound                = errors.New("core: booking not found")
	ErrResourceNotFound               = errors.New("core: resource not found")
	ErrNoPublishedConfig              = errors.New("core: no published config")
)

type ConfigStatus string

const (
	ConfigStatusDraft     ConfigStatus = "draft"
	ConfigStatusSubmitted ConfigStatus = "submitted"
	ConfigStatusApproved  ConfigStatus = "approved"
	ConfigStatusPublished ConfigStatus = "published"
	ConfigStatusRejected  ConfigStatus = "rejected"
	// ConfigStatusArchived marks a previously published row demoted by a
	// newer publish. Archived rows are history, never authoritative.
	ConfigStatusArchived ConfigStatus = "archived"
)

// ModuleConfig is one version of a tenant's configuration document for a
// module, tagged with the schema it was validated against at submission.
type ModuleConfig struct {
	ID          string
	TenantID    string
	ModuleKey   string
	ConfigJSON  json.RawMessage
	SchemaRef   string
	Version     int
	Status      ConfigStatus
	ReviewNote  string
	SubmittedBy string
	ApprovedBy  string
	SubmittedAt *time.Time
	ApprovedAt  *time.Time
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *ModuleConfig) TransitionTo(status ConfigStatus, now time.Time) error {
	if c == nil {
		return nil
	}
	if c.Status == status {
		c.UpdatedAt = now
		return nil
	}
	if !configTransitionAllowed(c.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidConfigStatusTransition, c.Status, status)
	}
	c.Status = status
	c.UpdatedAt = now
	switch status {
	case ConfigStatusSubmitted:
		at := now
		c.SubmittedAt = &at
	case ConfigStatusApproved:
		at := now
		c.ApprovedAt = &at
	case ConfigStatusPublished:
		at := now
		c.PublishedAt = &at
	}
	return nil
}

func configTransitionAllowed(current, next ConfigStatus) bool {
	allowed := map[ConfigStatus]map[ConfigStatus]struct{}{
		ConfigStatusDraft: {
			ConfigStatusSubmitted: {},
		},
		ConfigStatusSubmitted: {
			ConfigStatusApproved: {},
			ConfigStatusRejected: {},
		},
		ConfigStatusApproved: {
			ConfigStatusPublished: {},
		},
		ConfigStatusPublished: {
			ConfigStatusArchived: {},
		},
		// A rejected document is only edited by starting a fresh draft at
		// version+1; the rejected row itself stays terminal.
		ConfigStatusRejected: {},
		ConfigStatusArchived: {},
	}
	targets, ok := allowed[current]
	if !ok {
		return false
	}
	_, ok = targets[next]
	return ok
}

type EntitlementStatus string

const (
	EntitlementStatusEnabled  EntitlementStatus = "enabled"
	EntitlementStatusDisabled EntitlementStatus = "disabled"
)

func (s EntitlementStatus) Validate() error {
	switch s {
	case EntitlementStatusEnabled, EntitlementStatusDisabled:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidEntitlementStatus, s)
}

// Entitlement grants a tenant use of a module, optionally until ExpiresAt.
type Entitlement struct {
	ID        string
	TenantID  string
	ModuleKey string
	Status    EntitlementStatus
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usable reports whether the entitlement admits use at the given instant.
// Enabled with an elapsed expiry is not usable.
func (e Entitlement) Usable(now time.Time) bool {
	if e.Status != EntitlementStatusEnabled {
		return false
	}
	if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
		return false
	}
	return true
}

type DenialReason string

const (
	DenialReasonNone        DenialReason = ""
	DenialReasonNotEntitled DenialReason = "not_entitled"
	DenialReasonExpired     DenialReason = "expired"
)

// Decision is the outcome of an entitlement resolution.
type Decision struct {
	Allowed bool
	Reason  DenialReason
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason DenialReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// OpenWindow is a daily open interval expressed as minutes from midnight,
// half-open: a slot must satisfy Open <= start and end <= Close.
type OpenWindow struct {
	Open  int `json:"open"`
	Close int `json:"close"`
}

// SlotRule governs how a resource's time is carved into bookable slots.
type SlotRule struct {
	SlotMinutes int                         `json:"slot_minutes"`
	OpenHours   map[time.Weekday]OpenWindow `json:"open_hours"`
	MaxBookDays int                         `json:"max_book_days"`
}

func (r SlotRule) Validate() error {
	if r.SlotMinutes <= 0 || r.SlotMinutes > 24*60 {
		return fmt.Errorf("%w: slot_minutes %d", ErrInvalidSlotRule, r.SlotMinutes)
	}
	if r.MaxBookDays <= 0 {
		return fmt.Errorf("%w: max_book_days %d", ErrInvalidSlotRule, r.MaxBookDays)
	}
	for day, window := range r.OpenHours {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: weekday %d", ErrInvalidSlotRule, day)
		}
		if window.Open < 0 || window.Close > 24*60 || window.Open >= window.Close {
			return fmt.Errorf("%w: open window %d-%d on %s", ErrInvalidSlotRule, window.Open, window.Close, day)
		}
	}
	return nil
}

// Resource is a bookable asset owned by a tenant.
type Resource struct {
	ID           string
	TenantID     string
	Name         string
	ResourceType string
	Rule         SlotRule
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking holds a [Start, End) interval on a resource. Only CONFIRMED
// bookings occupy the admitted set; PENDING rows may overlap freely.
type Booking struct {
	ID               string
	ResourceID       string
	TenantID         string
	UserID           string
	Start            time.Time
	End              time.Time
	Status           BookingStatus
	VerificationCode string
	IdempotencyKey   string
	CancelReason     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (b *Booking) TransitionTo(status BookingStatus, now time.Time) error {
	if b == nil {
		return nil
	}
	if b.Status == status {
		b.UpdatedAt = now
		return nil
	}
	if !bookingTransitionAllowed(b.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidBookingStatusTransition, b.Status, status)
	}
	b.Status = status
	b.UpdatedAt = now
	return nil
}

func bookingTransitionAllowed(current, next BookingStatus) bool {
	allowed := map[BookingStatus]map[BookingStatus]struct{}{
		BookingStatusPending: {
			BookingStatusConfirmed: {},
			BookingStatusCancelled: {},
		},
		BookingStatusConfirmed: {
			BookingStatusCancelled: {},
		},
		BookingStatusCancelled: {},
	}
	targets, ok := allowed[current]
	if !ok {
		return false
	}
	_, ok = targets[next]
	return ok
}

// Terminal reports whether no further transitions are possible.
func (b Booking) Terminal() bool {
	return b.Status == BookingStatusCancelled
}

// Overlaps reports half-open interval overlap with [start, end).
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.Start.Before(end) && b.End.After(start)
}
