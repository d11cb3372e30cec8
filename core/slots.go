package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultSlotLockTTL = 10 * time.Second

// validateSlot runs the admission pre-checks in order: alignment, booking
// window, open hours. The overlap check against the admitted set belongs to
// the store, where the uniqueness constraint lives.
func validateSlot(rule SlotRule, start, end time.Time, now time.Time) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if !end.After(start) {
		return fmt.Errorf("%w: empty interval %s-%s", ErrOutOfWindow, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	slot := time.Duration(rule.SlotMinutes) * time.Minute
	if !start.Truncate(slot).Equal(start) {
		return fmt.Errorf("%w: start %s is not on a %d minute boundary", ErrSlotMisaligned, start.Format(time.RFC3339), rule.SlotMinutes)
	}

	if start.Before(now) {
		return fmt.Errorf("%w: start %s is in the past", ErrOutOfWindow, start.Format(time.RFC3339))
	}
	horizon := now.AddDate(0, 0, rule.MaxBookDays)
	if start.After(horizon) {
		return fmt.Errorf("%w: start %s beyond %d day horizon", ErrOutOfWindow, start.Format(time.RFC3339), rule.MaxBookDays)
	}

	window, open := rule.OpenHours[start.Weekday()]
	if !open {
		return fmt.Errorf("%w: closed on %s", ErrOutOfWindow, start.Weekday())
	}
	startMinutes := start.Hour()*60 + start.Minute()
	endMinutes := startMinutes + int(end.Sub(start)/time.Minute)
	if startMinutes < window.Open || endMinutes > window.Close {
		return fmt.Errorf("%w: %02d:%02d-%02d:%02d outside open hours %02d:%02d-%02d:%02d",
			ErrOutOfWindow,
			startMinutes/60, startMinutes%60, endMinutes/60, endMinutes%60,
			window.Open/60, window.Open%60, window.Close/60, window.Close%60,
		)
	}
	return nil
}

// slotLockKey identifies the in-process fast-fail lock for one slot on one
// resource.
func slotLockKey(resourceID string, start time.Time) string {
	return fmt.Sprintf("slot::%s::%d", strings.TrimSpace(resourceID), start.Unix())
}

type MemorySlotLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemorySlotLocker() *MemorySlotLocker {
	return &MemorySlotLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemorySlotLocker) Acquire(_ context.Context, key string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: slot locker is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("core: lock key is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultSlotLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[key]; ok && now.Before(until) {
		return nil, fmt.Errorf("%w: %q", ErrSlotLocked, key)
	}
	l.locks[key] = now.Add(ttl)
	return &memoryLockHandle{locker: l, key: key}, nil
}

type memoryLockHandle struct {
	locker *MemorySlotLocker
	key    string
	once   sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.key)
		h.locker.mu.Unlock()
	})
	return nil
}

var _ SlotLocker = (*MemorySlotLocker)(nil)
