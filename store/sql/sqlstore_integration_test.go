package sqlstore_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-tenancy/core"
	tenancymigrations "github.com/goliatone/go-tenancy/migrations"
	sqlstore "github.com/goliatone/go-tenancy/store/sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-tenancy-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:tenancy-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = tenancymigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != tenancymigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, tenancymigrations.WithValidationTargets(tenancymigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"tenant_module_configs",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "tenant_module_configs" {
		t.Fatalf("expected tenant_module_configs table, got %q", tableName)
	}
}

func TestConfigStore_VersioningAndPublishDemotion(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.ConfigStore()
	if store == nil {
		t.Fatalf("expected config store from factory")
	}

	now := time.Now().UTC().Truncate(time.Second)
	created, err := store.Create(ctx, core.ModuleConfig{
		TenantID:    "tenant_1",
		ModuleKey:   "bookings",
		ConfigJSON:  json.RawMessage(`{"enabled":true}`),
		Version:     1,
		Status:      core.ConfigStatusSubmitted,
		SubmittedBy: "editor_1",
		SubmittedAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("create config: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated config id")
	}

	// Stale expected version must not apply.
	stale := created
	stale.Version = 2
	stale.Status = core.ConfigStatusApproved
	if _, err := store.UpdateVersioned(ctx, stale, 7); !errors.Is(err, core.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	approved := created
	approved.Version = 2
	approved.Status = core.ConfigStatusApproved
	approved.ApprovedBy = "reviewer_1"
	approved, err = store.UpdateVersioned(ctx, approved, created.Version)
	if err != nil {
		t.Fatalf("approve config: %v", err)
	}
	if approved.Version != 2 {
		t.Fatalf("expected version 2 after approve, got %d", approved.Version)
	}

	first := approved
	first.Version = 3
	first.Status = core.ConfigStatusPublished
	first, err = store.Publish(ctx, first, approved.Version)
	if err != nil {
		t.Fatalf("publish first config: %v", err)
	}

	// Publishing a second document demotes the first within the same call.
	second, err := store.Create(ctx, core.ModuleConfig{
		TenantID:    "tenant_1",
		ModuleKey:   "bookings",
		ConfigJSON:  json.RawMessage(`{"enabled":false}`),
		Version:     4,
		Status:      core.ConfigStatusApproved,
		SubmittedBy: "editor_1",
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("create second config: %v", err)
	}
	promoted := second
	promoted.Version = 5
	promoted.Status = core.ConfigStatusPublished
	if _, err := store.Publish(ctx, promoted, second.Version); err != nil {
		t.Fatalf("publish second config: %v", err)
	}

	published, err := store.Published(ctx, "tenant_1", "bookings")
	if err != nil {
		t.Fatalf("published lookup: %v", err)
	}
	if published.ID != second.ID {
		t.Fatalf("expected second config published, got %s", published.ID)
	}

	demoted, err := store.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get demoted config: %v", err)
	}
	if demoted.Status != core.ConfigStatusArchived {
		t.Fatalf("expected first config archived, got %s", demoted.Status)
	}

	history, err := store.History(ctx, "tenant_1", "bookings")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
	if history[0].Version < history[1].Version {
		t.Fatalf("expected history ordered by version desc")
	}

	if _, err := store.Published(ctx, "tenant_2", "bookings"); !errors.Is(err, core.ErrNoPublishedConfig) {
		t.Fatalf("expected ErrNoPublishedConfig, got %v", err)
	}
}

func TestEntitlementStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.EntitlementStore()

	if _, found, err := store.Get(ctx, "tenant_1", "bookings"); err != nil || found {
		t.Fatalf("expected missing entitlement, found=%v err=%v", found, err)
	}

	expires := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	created, err := store.Upsert(ctx, core.ToggleEntitlementInput{
		TenantID:  "tenant_1",
		ModuleKey: "bookings",
		Status:    core.EntitlementStatusEnabled,
		ExpiresAt: &expires,
	})
	if err != nil {
		t.Fatalf("upsert entitlement: %v", err)
	}
	if created.Status != core.EntitlementStatusEnabled {
		t.Fatalf("expected enabled entitlement, got %s", created.Status)
	}

	toggled, err := store.Upsert(ctx, core.ToggleEntitlementInput{
		TenantID:  "tenant_1",
		ModuleKey: "bookings",
		Status:    core.EntitlementStatusDisabled,
	})
	if err != nil {
		t.Fatalf("toggle entitlement: %v", err)
	}
	if toggled.ID != created.ID {
		t.Fatalf("expected toggle to reuse row %s, got %s", created.ID, toggled.ID)
	}
	if toggled.Status != core.EntitlementStatusDisabled {
		t.Fatalf("expected disabled entitlement, got %s", toggled.Status)
	}
	if toggled.ExpiresAt != nil {
		t.Fatalf("expected expiry cleared on toggle, got %v", toggled.ExpiresAt)
	}

	fetched, found, err := store.Get(ctx, "tenant_1", "bookings")
	if err != nil || !found {
		t.Fatalf("expected entitlement after upsert, found=%v err=%v", found, err)
	}
	if fetched.Status != core.EntitlementStatusDisabled {
		t.Fatalf("expected stored status disabled, got %s", fetched.Status)
	}
}

func TestResourceStore_UpsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	resources := factory.ResourceStore()

	rule := core.SlotRule{
		SlotMinutes: 60,
		OpenHours: map[time.Weekday]core.OpenWindow{
			time.Tuesday: {Open: 8 * 60, Close: 20 * 60},
		},
		MaxBookDays: 14,
	}
	created, err := resources.Upsert(ctx, core.UpsertResourceInput{
		TenantID:     "tenant_1",
		Name:         "Studio B",
		ResourceType: "studio",
		Rule:         rule,
	})
	if err != nil {
		t.Fatalf("upsert resource: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated resource id")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps on created resource")
	}

	fetched, err := resources.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get resource: %v", err)
	}
	if fetched.Rule.SlotMinutes != rule.SlotMinutes || fetched.Rule.MaxBookDays != rule.MaxBookDays {
		t.Fatalf("expected slot rule to round-trip, got %+v", fetched.Rule)
	}
	window, ok := fetched.Rule.OpenHours[time.Tuesday]
	if !ok || window.Open != 8*60 || window.Close != 20*60 {
		t.Fatalf("expected Tuesday open window to round-trip, got %+v", fetched.Rule.OpenHours)
	}

	updated, err := resources.Upsert(ctx, core.UpsertResourceInput{
		ID:           created.ID,
		TenantID:     "tenant_1",
		Name:         "Studio B (renamed)",
		ResourceType: "studio",
		Rule:         rule,
	})
	if err != nil {
		t.Fatalf("upsert existing resource: %v", err)
	}
	if updated.Name != "Studio B (renamed)" {
		t.Fatalf("expected name update, got %q", updated.Name)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("expected CreatedAt preserved across update, got %v vs %v", updated.CreatedAt, created.CreatedAt)
	}

	if _, err := resources.Get(ctx, "missing"); !errors.Is(err, core.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestBookingStore_IdempotentCreateAndAdmission(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	resources := factory.ResourceStore()
	bookings := factory.BookingStore()

	resource, err := resources.Upsert(ctx, core.UpsertResourceInput{
		TenantID:     "tenant_1",
		Name:         "Court A",
		ResourceType: "court",
		Rule: core.SlotRule{
			SlotMinutes: 30,
			OpenHours: map[time.Weekday]core.OpenWindow{
				time.Monday: {Open: 9 * 60, Close: 17 * 60},
			},
			MaxBookDays: 30,
		},
	})
	if err != nil {
		t.Fatalf("upsert resource: %v", err)
	}

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	booking := core.Booking{
		ResourceID:     resource.ID,
		TenantID:       "tenant_1",
		UserID:         "user_1",
		Start:          start,
		End:            start.Add(30 * time.Minute),
		Status:         core.BookingStatusPending,
		IdempotencyKey: "req-1",
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}

	first, err := bookings.Create(ctx, booking)
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if !first.Created {
		t.Fatalf("expected first create to report Created")
	}

	replay, err := bookings.Create(ctx, booking)
	if err != nil {
		t.Fatalf("replay booking: %v", err)
	}
	if replay.Created {
		t.Fatalf("expected replay to report Created=false")
	}
	if replay.Booking.ID != first.Booking.ID {
		t.Fatalf("expected replay to return the original booking")
	}

	rival := booking
	rival.UserID = "user_2"
	rival.IdempotencyKey = "req-2"
	rivalResult, err := bookings.Create(ctx, rival)
	if err != nil {
		t.Fatalf("create rival booking: %v", err)
	}

	now := time.Now().UTC()
	confirmed, err := bookings.Confirm(ctx, first.Booking.ID, "AAAA1111", now)
	if err != nil {
		t.Fatalf("confirm winner: %v", err)
	}
	if confirmed.Status != core.BookingStatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", confirmed.Status)
	}
	if confirmed.VerificationCode != "AAAA1111" {
		t.Fatalf("expected verification code persisted, got %q", confirmed.VerificationCode)
	}

	if _, err := bookings.Confirm(ctx, rivalResult.Booking.ID, "BBBB2222", now); !errors.Is(err, core.ErrBookingConflict) {
		t.Fatalf("expected booking conflict for rival, got %v", err)
	}

	// Re-confirming the winner cannot succeed a second time.
	if _, err := bookings.Confirm(ctx, first.Booking.ID, "CCCC3333", now); !errors.Is(err, core.ErrInvalidBookingStatusTransition) {
		t.Fatalf("expected invalid transition re-confirming a confirmed booking, got %v", err)
	}

	// A distinct but overlapping interval loses to the admitted one even
	// though the unique index never fires for it.
	overlap := booking
	overlap.UserID = "user_3"
	overlap.IdempotencyKey = "req-3"
	overlap.End = booking.End.Add(30 * time.Minute)
	overlapResult, err := bookings.Create(ctx, overlap)
	if err != nil {
		t.Fatalf("create overlapping booking: %v", err)
	}
	if _, err := bookings.Confirm(ctx, overlapResult.Booking.ID, "DDDD4444", now); !errors.Is(err, core.ErrBookingConflict) {
		t.Fatalf("expected booking conflict for overlapping interval, got %v", err)
	}

	// Cancelling the winner frees the interval for the rival.
	if _, err := bookings.Cancel(ctx, first.Booking.ID, "user requested", now); err != nil {
		t.Fatalf("cancel winner: %v", err)
	}
	if _, err := bookings.Confirm(ctx, rivalResult.Booking.ID, "BBBB2222", now); err != nil {
		t.Fatalf("confirm rival after cancel: %v", err)
	}
}

func TestBookingStore_CancelIdempotentAndReap(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	resources := factory.ResourceStore()
	bookings := factory.BookingStore()

	resource, err := resources.Upsert(ctx, core.UpsertResourceInput{
		TenantID:     "tenant_1",
		Name:         "Court B",
		ResourceType: "court",
		Rule:         core.SlotRule{SlotMinutes: 30, MaxBookDays: 30},
	})
	if err != nil {
		t.Fatalf("upsert resource: %v", err)
	}

	created := time.Now().UTC().Add(-20 * time.Minute)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	stale, err := bookings.Create(ctx, core.Booking{
		ResourceID:     resource.ID,
		TenantID:       "tenant_1",
		UserID:         "user_1",
		Start:          start,
		End:            start.Add(30 * time.Minute),
		Status:         core.BookingStatusPending,
		IdempotencyKey: "stale-1",
		CreatedAt:      created,
		UpdatedAt:      created,
	})
	if err != nil {
		t.Fatalf("create stale booking: %v", err)
	}

	freshStart := start.Add(time.Hour)
	fresh, err := bookings.Create(ctx, core.Booking{
		ResourceID:     resource.ID,
		TenantID:       "tenant_1",
		UserID:         "user_2",
		Start:          freshStart,
		End:            freshStart.Add(30 * time.Minute),
		Status:         core.BookingStatusPending,
		IdempotencyKey: "fresh-1",
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create fresh booking: %v", err)
	}

	now := time.Now().UTC()
	reaped, err := bookings.ReapPending(ctx, now.Add(-15*time.Minute), now)
	if err != nil {
		t.Fatalf("reap pending: %v", err)
	}
	if len(reaped) != 1 || reaped[0].ID != stale.Booking.ID {
		t.Fatalf("expected only stale booking reaped, got %d", len(reaped))
	}
	if reaped[0].CancelReason != "payment window elapsed" {
		t.Fatalf("expected reap cancel reason, got %q", reaped[0].CancelReason)
	}

	untouched, err := bookings.Get(ctx, fresh.Booking.ID)
	if err != nil {
		t.Fatalf("get fresh booking: %v", err)
	}
	if untouched.Status != core.BookingStatusPending {
		t.Fatalf("expected fresh booking untouched, got %s", untouched.Status)
	}

	cancelled, err := bookings.Cancel(ctx, fresh.Booking.ID, "user requested", now)
	if err != nil {
		t.Fatalf("cancel booking: %v", err)
	}
	again, err := bookings.Cancel(ctx, fresh.Booking.ID, "second call", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("cancel booking twice: %v", err)
	}
	if again.CancelReason != cancelled.CancelReason {
		t.Fatalf("expected repeat cancel to preserve reason %q, got %q", cancelled.CancelReason, again.CancelReason)
	}

	if _, err := bookings.Get(ctx, "missing"); !errors.Is(err, core.ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestBookingStore_ListByResourceWindow(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	resources := factory.ResourceStore()
	bookings := factory.BookingStore()

	resource, err := resources.Upsert(ctx, core.UpsertResourceInput{
		TenantID:     "tenant_1",
		Name:         "Court C",
		ResourceType: "court",
		Rule:         core.SlotRule{SlotMinutes: 30, MaxBookDays: 30},
	})
	if err != nil {
		t.Fatalf("upsert resource: %v", err)
	}

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		if _, err := bookings.Create(ctx, core.Booking{
			ResourceID:     resource.ID,
			TenantID:       "tenant_1",
			UserID:         "user_1",
			Start:          start,
			End:            start.Add(30 * time.Minute),
			Status:         core.BookingStatusPending,
			IdempotencyKey: fmt.Sprintf("list-%d", i),
			CreatedAt:      time.Now().UTC(),
			UpdatedAt:      time.Now().UTC(),
		}); err != nil {
			t.Fatalf("create booking %d: %v", i, err)
		}
	}

	listed, err := bookings.ListByResource(ctx, resource.ID, base.Add(30*time.Minute), base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 booking in window, got %d", len(listed))
	}
	if !listed[0].Start.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected the 10:00 booking, got %s", listed[0].Start)
	}

	all, err := bookings.ListByResource(ctx, resource.ID, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list all bookings: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 bookings, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Start.Before(all[i-1].Start) {
			t.Fatalf("expected bookings ordered by start")
		}
	}
}
