package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mondayAnchor is a Monday 08:00 UTC; slot fixtures book later the same day.
var mondayAnchor = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const testModuleSchema = `{
	"type": "object",
	"required": ["enabled"],
	"properties": {
		"enabled": {"type": "boolean"},
		"max_per_day": {"type": "integer", "minimum": 0}
	}
}`

func newTestRegistry(t *testing.T, moduleKeys ...string) *ModuleSchemaRegistry {
	t.Helper()
	registry := NewModuleSchemaRegistry()
	for _, key := range moduleKeys {
		if err := registry.Register(key, []byte(testModuleSchema)); err != nil {
			t.Fatalf("register schema for %s: %v", key, err)
		}
	}
	return registry
}

type testEnv struct {
	svc    *Service
	stores *MemoryStoreProvider
	sink   *MemoryEventSink
	clock  *testClock
}

func newTestEnv(t *testing.T, options ...Option) testEnv {
	t.Helper()
	stores := NewMemoryStoreProvider()
	sink := NewMemoryEventSink()
	clock := newTestClock(mondayAnchor)
	base := []Option{
		WithStoreProvider(stores),
		WithEventSink(sink),
		WithClock(clock),
		WithSchemaRegistry(newTestRegistry(t, "bookings", "catalog")),
	}
	svc, err := NewService(Config{}, append(base, options...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return testEnv{svc: svc, stores: stores, sink: sink, clock: clock}
}

func (e testEnv) seedResource(t *testing.T) Resource {
	t.Helper()
	openAllWeek := map[time.Weekday]OpenWindow{}
	for day := time.Sunday; day <= time.Saturday; day++ {
		openAllWeek[day] = OpenWindow{Open: 9 * 60, Close: 17 * 60}
	}
	resource, err := e.svc.UpsertResource(context.Background(), UpsertResourceInput{
		TenantID:     "tenant_1",
		Name:         "Court A",
		ResourceType: "court",
		Rule: SlotRule{
			SlotMinutes: 30,
			OpenHours:   openAllWeek,
			MaxBookDays: 30,
		},
	})
	if err != nil {
		t.Fatalf("seed resource: %v", err)
	}
	return resource
}

func (e testEnv) seedPending(t *testing.T, resourceID, userID string, start time.Time) Booking {
	t.Helper()
	result, err := e.svc.CreateBooking(context.Background(), CreateBookingInput{
		ResourceID: resourceID,
		TenantID:   "tenant_1",
		UserID:     userID,
		Start:      start,
		End:        start.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("seed pending booking for %s: %v", userID, err)
	}
	if !result.Created {
		t.Fatalf("expected a fresh booking for %s", userID)
	}
	return result.Booking
}

func (e testEnv) submitConfig(t *testing.T, tenantID, moduleKey string) ModuleConfig {
	t.Helper()
	config, err := e.svc.SubmitConfig(context.Background(), SubmitConfigInput{
		TenantID:    tenantID,
		ModuleKey:   moduleKey,
		ConfigJSON:  json.RawMessage(`{"enabled": true}`),
		SubmittedBy: "editor_1",
	})
	if err != nil {
		t.Fatalf("submit config: %v", err)
	}
	return config
}

// sequenceCodeGenerator hands out a fixed list of codes, then falls back to
// a counter. It lets tests force verification code collisions.
type sequenceCodeGenerator struct {
	mu     sync.Mutex
	codes  []string
	serial int
}

func (g *sequenceCodeGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) > 0 {
		code := g.codes[0]
		g.codes = g.codes[1:]
		return code, nil
	}
	g.serial++
	return fmt.Sprintf("FALLBACK%d", g.serial), nil
}
