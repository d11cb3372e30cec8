package tenancy

import "github.com/goliatone/go-tenancy/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type StoreProvider = core.StoreProvider
type ConfigStore = core.ConfigStore
type EntitlementStore = core.EntitlementStore
type ResourceStore = core.ResourceStore
type BookingStore = core.BookingStore
type SchemaRegistry = core.SchemaRegistry
type EventSink = core.EventSink
type SlotLocker = core.SlotLocker

type ModuleConfig = core.ModuleConfig
type Entitlement = core.Entitlement
type Resource = core.Resource
type Booking = core.Booking
type Decision = core.Decision
type SlotRule = core.SlotRule
type OpenWindow = core.OpenWindow
type LifecycleEvent = core.LifecycleEvent

type SubmitConfigInput = core.SubmitConfigInput
type ApproveConfigInput = core.ApproveConfigInput
type RejectConfigInput = core.RejectConfigInput
type PublishConfigInput = core.PublishConfigInput
type ToggleEntitlementInput = core.ToggleEntitlementInput
type UpsertResourceInput = core.UpsertResourceInput
type CreateBookingInput = core.CreateBookingInput
type CreateBookingResult = core.CreateBookingResult

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithClock             = core.WithClock
	WithSchemaRegistry    = core.WithSchemaRegistry
	WithEventSink         = core.WithEventSink
	WithSlotLocker        = core.WithSlotLocker
	WithCodeGenerator     = core.WithCodeGenerator
	WithPersistenceClient = core.WithPersistenceClient
	WithStoreProvider     = core.WithStoreProvider
	WithConfigStore       = core.WithConfigStore
	WithEntitlementStore  = core.WithEntitlementStore
	WithResourceStore     = core.WithResourceStore
	WithBookingStore      = core.WithBookingStore
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
