package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory stores back the service without a database. They hold the same
// invariants the SQL stores enforce with indexes: one published config per
// (tenant, module), version-gated updates, idempotent booking creation, and
// exclusive CONFIRMED admission. All mutations happen under one mutex per
// store, the in-process stand-in for a transaction.

type MemoryConfigStore struct {
	mu      sync.Mutex
	configs map[string]ModuleConfig
}

func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{configs: make(map[string]ModuleConfig)}
}

func (s *MemoryConfigStore) Create(_ context.Context, config ModuleConfig) (ModuleConfig, error) {
	if s == nil {
		return ModuleConfig{}, fmt.Errorf("core: memory config store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(config.ID) == "" {
		config.ID = uuid.NewString()
	}
	if _, exists := s.configs[config.ID]; exists {
		return ModuleConfig{}, fmt.Errorf("core: config id already exists: %s", config.ID)
	}
	s.configs[config.ID] = config
	return config, nil
}

func (s *MemoryConfigStore) Get(_ context.Context, id string) (ModuleConfig, error) {
	if s == nil {
		return ModuleConfig{}, fmt.Errorf("core: memory config store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	config, ok := s.configs[strings.TrimSpace(id)]
	if !ok {
		return ModuleConfig{}, fmt.Errorf("%w: id %q", ErrConfigNotFound, id)
	}
	return config, nil
}

func (s *MemoryConfigStore) Latest(_ context.Context, tenantID, moduleKey string) (ModuleConfig, error) {
	if s == nil {
		return ModuleConfig{}, fmt.Errorf("core: memory config store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest ModuleConfig
	found := false
	for _, config := range s.configs {
		if config.TenantID != tenantID || config.ModuleKey != moduleKey {
			continue
		}
		if !found || config.Version > latest.Version {
			latest = config
			found = true
		}
	}
	if !found {
		return ModuleConfig{}, fmt.Errorf("%w: %s/%s", ErrConfigNotFound, tenantID, moduleKey)
	}
	return latest, nil
}

func (s *MemoryConfigStore) Published(_ context.Context, tenantID, moduleKey string) (ModuleConfig, error) {
	if s == nil {
		return ModuleConfig{}, fmt.Errorf("core: memory config store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, config := range s.configs {
		if config.TenantID == tenantID && config.ModuleKey == moduleKey && config.Status == ConfigStatusPublished {
			return config, nil
		}
	}
	return ModuleConfig{}, fmt.Errorf("%w: %s/%s", ErrNoPublishedConfig, tenantID, moduleKey)
}

func (s *MemoryConfigStore) History(_ context.Context, tenantID, moduleKey string) ([]ModuleConfig, error) {
	if s == nil {
		return nil, fmt.Errorf("core: memory config store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ModuleConfig, 0)
	for _, config := range s.configs {
		if config.TenantID == tenantID && config.ModuleKey == moduleKey {
			out = append(out, config)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (s *MemoryConfigStore) UpdateVersioned(_ context.Context, config ModuleConfig, expectedVersion int) (ModuleConfig, error) {
	if s == nil {
		return ModuleConfig{}, fmt.Errorf("core: memory config store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateVersionedLocked(config, expectedVersion)
}

func (s *MemoryConfigStore) Publish(_ context.Context, config ModuleConfig, expectedVersion int) (ModuleConfig, error) {
	if s == nil {
		return ModuleConfig{}, fmt.Errorf("core: memory config store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Demote the currently published row first so at most one published
	// row per (tenant, module) survives the swap.
	for id, existing := range s.configs {
		if existing.TenantID == config.TenantID &&
			existing.ModuleKey == config.ModuleKey &&
			existing.Status == ConfigStatusPublished &&
			existing.ID != config.ID {
			existing.Status = ConfigStatusArchived
			existing.UpdatedAt = config.UpdatedAt
			s.configs[id] = existing
		}
	}
	return s.updateVersionedLocked(config, expectedVersion)
}

func (s *MemoryConfigStore) updateVersionedLocked(config ModuleConfig, expectedVersion int) (ModuleConfig, error) {
	stored, ok := s.configs[config.ID]
	if !ok {
		return ModuleConfig{}, fmt.Errorf("%w: id %q", ErrConfigNotFound, config.ID)
	}
	if stored.Version != expectedVersion {
		return ModuleConfig{}, fmt.Errorf("%w: expected version %d, have %d", ErrVersionConflict, expectedVersion, stored.Version)
	}
	s.configs[config.ID] = config
	return config, nil
}

type MemoryEntitlementStore struct {
	mu           sync.Mutex
	entitlements map[string]Entitlement
}

func NewMemoryEntitlementStore() *MemoryEntitlementStore {
	return &MemoryEntitlementStore{entitlements: make(map[string]Entitlement)}
}

func entitlementKey(tenantID, moduleKey string) string {
	return tenantID + "::" + moduleKey
}

func (s *MemoryEntitlementStore) Get(_ context.Context, tenantID, moduleKey string) (Entitlement, bool, error) {
	if s == nil {
		return Entitlement{}, false, fmt.Errorf("core: memory entitlement store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entitlement, ok := s.entitlements[entitlementKey(tenantID, moduleKey)]
	return entitlement, ok, nil
}

func (s *MemoryEntitlementStore) Upsert(_ context.Context, in ToggleEntitlementInput) (Entitlement, error) {
	if s == nil {
		return Entitlement{}, fmt.Errorf("core: memory entitlement store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	key := entitlementKey(in.TenantID, in.ModuleKey)
	entitlement, ok := s.entitlements[key]
	if !ok {
		entitlement = Entitlement{
			ID:        uuid.NewString(),
			TenantID:  in.TenantID,
			ModuleKey: in.ModuleKey,
			CreatedAt: now,
		}
	}
	entitlement.Status = in.Status
	entitlement.ExpiresAt = in.ExpiresAt
	entitlement.UpdatedAt = now
	s.entitlements[key] = entitlement
	return entitlement, nil
}

type MemoryResourceStore struct {
	mu        sync.Mutex
	resources map[string]Resource
}

func NewMemoryResourceStore() *MemoryResourceStore {
	return &MemoryResourceStore{resources: make(map[string]Resource)}
}

func (s *MemoryResourceStore) Get(_ context.Context, id string) (Resource, error) {
	if s == nil {
		return Resource{}, fmt.Errorf("core: memory resource store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	resource, ok := s.resources[strings.TrimSpace(id)]
	if !ok {
		return Resource{}, fmt.Errorf("%w: id %q", ErrResourceNotFound, id)
	}
	return resource, nil
}

func (s *MemoryResourceStore) Upsert(_ context.Context, in UpsertResourceInput) (Resource, error) {
	if s == nil {
		return Resource{}, fmt.Errorf("core: memory resource store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	resource, ok := s.resources[id]
	if !ok {
		resource = Resource{ID: id, CreatedAt: now}
	}
	resource.TenantID = in.TenantID
	resource.Name = in.Name
	resource.ResourceType = in.ResourceType
	resource.Rule = in.Rule
	resource.UpdatedAt = now
	s.resources[id] = resource
	return resource, nil
}

type MemoryBookingStore struct {
	mu       sync.Mutex
	bookings map[string]Booking
}

func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{bookings: make(map[string]Booking)}
}

func (s *MemoryBookingStore) Create(_ context.Context, booking Booking) (CreateBookingResult, error) {
	if s == nil {
		return CreateBookingResult{}, fmt.Errorf("core: memory booking store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if booking.IdempotencyKey != "" {
		for _, existing := range s.bookings {
			if existing.TenantID == booking.TenantID && existing.IdempotencyKey == booking.IdempotencyKey {
				return CreateBookingResult{Booking: existing, Created: false}, nil
			}
		}
	}
	if strings.TrimSpace(booking.ID) == "" {
		booking.ID = uuid.NewString()
	}
	s.bookings[booking.ID] = booking
	return CreateBookingResult{Booking: booking, Created: true}, nil
}

func (s *MemoryBookingStore) Get(_ context.Context, id string) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("core: memory booking store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	booking, ok := s.bookings[strings.TrimSpace(id)]
	if !ok {
		return Booking{}, fmt.Errorf("%w: id %q", ErrBookingNotFound, id)
	}
	return booking, nil
}

func (s *MemoryBookingStore) ListByResource(_ context.Context, resourceID string, from, to time.Time) ([]Booking, error) {
	if s == nil {
		return nil, fmt.Errorf("core: memory booking store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Booking, 0)
	for _, booking := range s.bookings {
		if booking.ResourceID != resourceID {
			continue
		}
		if !from.IsZero() && !booking.End.After(from) {
			continue
		}
		if !to.IsZero() && !booking.Start.Before(to) {
			continue
		}
		out = append(out, booking)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Confirm holds the admitted-set invariant: under the store mutex it checks
// every CONFIRMED booking on the resource for overlap and the tenant's
// CONFIRMED codes for collision before applying the transition, mirroring
// what the SQL store delegates to its partial unique indexes.
func (s *MemoryBookingStore) Confirm(_ context.Context, id string, verificationCode string, now time.Time) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("core: memory booking store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[strings.TrimSpace(id)]
	if !ok {
		return Booking{}, fmt.Errorf("%w: id %q", ErrBookingNotFound, id)
	}
	if booking.Status != BookingStatusPending {
		return Booking{}, fmt.Errorf("%w: %s -> %s", ErrInvalidBookingStatusTransition, booking.Status, BookingStatusConfirmed)
	}

	for _, existing := range s.bookings {
		if existing.ID == booking.ID || existing.Status != BookingStatusConfirmed {
			continue
		}
		if existing.ResourceID == booking.ResourceID && existing.Overlaps(booking.Start, booking.End) {
			return Booking{}, fmt.Errorf("%w: interval %s-%s already admitted",
				ErrBookingConflict,
				existing.Start.Format(time.RFC3339), existing.End.Format(time.RFC3339))
		}
		if existing.TenantID == booking.TenantID && existing.VerificationCode == verificationCode {
			return Booking{}, fmt.Errorf("%w: %q", ErrCodeCollision, verificationCode)
		}
	}

	if err := booking.TransitionTo(BookingStatusConfirmed, now); err != nil {
		return Booking{}, err
	}
	booking.VerificationCode = verificationCode
	s.bookings[booking.ID] = booking
	return booking, nil
}

func (s *MemoryBookingStore) Cancel(_ context.Context, id string, reason string, now time.Time) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("core: memory booking store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[strings.TrimSpace(id)]
	if !ok {
		return Booking{}, fmt.Errorf("%w: id %q", ErrBookingNotFound, id)
	}
	if booking.Status == BookingStatusCancelled {
		return booking, nil
	}
	if err := booking.TransitionTo(BookingStatusCancelled, now); err != nil {
		return Booking{}, err
	}
	if reason != "" {
		booking.CancelReason = reason
	}
	s.bookings[booking.ID] = booking
	return booking, nil
}

func (s *MemoryBookingStore) ReapPending(_ context.Context, cutoff time.Time, now time.Time) ([]Booking, error) {
	if s == nil {
		return nil, fmt.Errorf("core: memory booking store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := make([]Booking, 0)
	for id, booking := range s.bookings {
		if booking.Status != BookingStatusPending || booking.CreatedAt.After(cutoff) {
			continue
		}
		if err := booking.TransitionTo(BookingStatusCancelled, now); err != nil {
			return nil, err
		}
		booking.CancelReason = "payment window elapsed"
		s.bookings[id] = booking
		reaped = append(reaped, booking)
	}
	sort.Slice(reaped, func(i, j int) bool { return reaped[i].CreatedAt.Before(reaped[j].CreatedAt) })
	return reaped, nil
}

type MemoryStoreProvider struct {
	Configs      *MemoryConfigStore
	Entitlements *MemoryEntitlementStore
	Resources    *MemoryResourceStore
	Bookings     *MemoryBookingStore
}

func NewMemoryStoreProvider() *MemoryStoreProvider {
	return &MemoryStoreProvider{
		Configs:      NewMemoryConfigStore(),
		Entitlements: NewMemoryEntitlementStore(),
		Resources:    NewMemoryResourceStore(),
		Bookings:     NewMemoryBookingStore(),
	}
}

func (p *MemoryStoreProvider) ConfigStore() ConfigStore { return p.Configs }

func (p *MemoryStoreProvider) EntitlementStore() EntitlementStore { return p.Entitlements }

func (p *MemoryStoreProvider) ResourceStore() ResourceStore { return p.Resources }

func (p *MemoryStoreProvider) BookingStore() BookingStore { return p.Bookings }

var (
	_ ConfigStore      = (*MemoryConfigStore)(nil)
	_ EntitlementStore = (*MemoryEntitlementStore)(nil)
	_ ResourceStore    = (*MemoryResourceStore)(nil)
	_ BookingStore     = (*MemoryBookingStore)(nil)
	_ StoreProvider    = (*MemoryStoreProvider)(nil)
)
