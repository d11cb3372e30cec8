package core

import (
	"context"
	"encoding/json"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// Clock abstracts time for deterministic tests; the reaper and entitlement
// expiry both key off it.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// SchemaRegistry resolves the JSON schema a module's config documents must
// validate against. Registration is owned by the platform, not this core.
type SchemaRegistry interface {
	Validate(ctx context.Context, moduleKey string, document json.RawMessage) (schemaRef string, err error)
}

// EventSink receives lifecycle events after the owning transaction commits.
// Delivery, retry and backoff are entirely the sink's concern; emission is
// fire-and-forget.
type EventSink interface {
	Emit(ctx context.Context, event LifecycleEvent)
}

type LifecycleEvent struct {
	ID         string
	Type       string
	TenantID   string
	ModuleKey  string
	ObjectID   string
	OccurredAt time.Time
	Payload    map[string]any
}

const (
	EventConfigPublished         = "config.published"
	EventEntitlementToggled      = "entitlement.toggled"
	EventBookingCreated          = "booking.created"
	EventBookingPaymentConfirmed = "booking.payment_confirmed"
	EventBookingCancelled        = "booking.cancelled"
	EventBookingReaped           = "booking.reaped"
)

type SubmitConfigInput struct {
	TenantID    string
	ModuleKey   string
	ConfigJSON  json.RawMessage
	SubmittedBy string
}

type ToggleEntitlementInput struct {
	TenantID  string
	ModuleKey string
	Status    EntitlementStatus
	ExpiresAt *time.Time
}

type UpsertResourceInput struct {
	ID           string
	TenantID     string
	Name         string
	ResourceType string
	Rule         SlotRule
}

type CreateBookingInput struct {
	ResourceID     string
	TenantID       string
	UserID         string
	Start          time.Time
	End            time.Time
	IdempotencyKey string
}

// CreateBookingResult reports whether the booking was newly created or
// replayed from a previous call carrying the same idempotency key.
type CreateBookingResult struct {
	Booking Booking
	Created bool
}

// ConfigStore persists the versioned config workflow. UpdateVersioned applies
// the mutation only when the stored version still equals expectedVersion and
// returns ErrVersionConflict otherwise; Publish additionally demotes the
// previously published row for the same (tenant, module) in the same
// transaction.
type ConfigStore interface {
	Create(ctx context.Context, config ModuleConfig) (ModuleConfig, error)
	Get(ctx context.Context, id string) (ModuleConfig, error)
	Latest(ctx context.Context, tenantID, moduleKey string) (ModuleConfig, error)
	Published(ctx context.Context, tenantID, moduleKey string) (ModuleConfig, error)
	History(ctx context.Context, tenantID, moduleKey string) ([]ModuleConfig, error)
	UpdateVersioned(ctx context.Context, config ModuleConfig, expectedVersion int) (ModuleConfig, error)
	Publish(ctx context.Context, config ModuleConfig, expectedVersion int) (ModuleConfig, error)
}

// EntitlementStore reads and toggles entitlements. Upsert must apply status
// changes as a single atomic write so a concurrent Get never observes a
// half-applied toggle.
type EntitlementStore interface {
	Get(ctx context.Context, tenantID, moduleKey string) (Entitlement, bool, error)
	Upsert(ctx context.Context, in ToggleEntitlementInput) (Entitlement, error)
}

type ResourceStore interface {
	Get(ctx context.Context, id string) (Resource, error)
	Upsert(ctx context.Context, in UpsertResourceInput) (Resource, error)
}

// BookingStore persists bookings. Confirm is the admission serialization
// point: the transition to CONFIRMED and the admitted-set uniqueness check
// happen in one transaction, and the losing concurrent writer receives
// ErrBookingConflict.
type BookingStore interface {
	Create(ctx context.Context, booking Booking) (CreateBookingResult, error)
	Get(ctx context.Context, id string) (Booking, error)
	ListByResource(ctx context.Context, resourceID string, from, to time.Time) ([]Booking, error)
	// Confirm transitions id to CONFIRMED with verificationCode, enforcing
	// admitted-set exclusivity.
	Confirm(ctx context.Context, id string, verificationCode string, now time.Time) (Booking, error)
	Cancel(ctx context.Context, id string, reason string, now time.Time) (Booking, error)
	// ReapPending cancels PENDING bookings created at or before cutoff and
	// returns the reaped bookings.
	ReapPending(ctx context.Context, cutoff time.Time, now time.Time) ([]Booking, error)
}

// SlotLocker is a fast-fail optimization in front of the store's uniqueness
// constraint, never a substitute for it: multiple service instances only
// agree through the store.
type SlotLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (LockHandle, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// StoreProvider hands the service its store set; store/sql implements it on
// top of a bun repository factory.
type StoreProvider interface {
	ConfigStore() ConfigStore
	EntitlementStore() EntitlementStore
	ResourceStore() ResourceStore
	BookingStore() BookingStore
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
