package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCodeCollision signals a verification code that already exists for the
// tenant; confirmation retries with a fresh code.
var ErrCodeCollision = errors.New("core: verification code collision")

// CreateBooking validates the slot against the resource's rule and records a
// tentative PENDING hold. PENDING rows do not occupy the admitted set, so
// several customers may hold the same slot concurrently; only confirmation
// is exclusive. A repeated call with the same idempotency key replays the
// original booking instead of creating a duplicate.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (CreateBookingResult, error) {
	startedAt := s.now()
	result, err := s.createBooking(ctx, in)
	s.observeOperation(ctx, startedAt, "booking_create", err, map[string]any{
		"tenant_id":   in.TenantID,
		"resource_id": in.ResourceID,
	})
	if err != nil {
		return CreateBookingResult{}, s.mapError(err)
	}
	if result.Created {
		s.emit(ctx, newLifecycleEvent(EventBookingCreated, result.Booking.TenantID, "", result.Booking.ID, s.now(), map[string]any{
			"resource_id": result.Booking.ResourceID,
			"start":       result.Booking.Start,
			"end":         result.Booking.End,
		}))
	}
	return result, nil
}

func (s *Service) createBooking(ctx context.Context, in CreateBookingInput) (CreateBookingResult, error) {
	if s == nil || s.bookingStore == nil || s.resourceStore == nil {
		return CreateBookingResult{}, fmt.Errorf("core: booking and resource stores are not configured")
	}
	in.ResourceID = strings.TrimSpace(in.ResourceID)
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.UserID = strings.TrimSpace(in.UserID)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.ResourceID == "" || in.TenantID == "" || in.UserID == "" {
		return CreateBookingResult{}, fmt.Errorf("core: resource id, tenant id and user id are required")
	}

	resource, err := s.resourceStore.Get(ctx, in.ResourceID)
	if err != nil {
		return CreateBookingResult{}, err
	}

	now := s.now()
	if err := validateSlot(resource.Rule, in.Start, in.End, now); err != nil {
		return CreateBookingResult{}, err
	}

	booking := Booking{
		ResourceID:     in.ResourceID,
		TenantID:       in.TenantID,
		UserID:         in.UserID,
		Start:          in.Start.UTC(),
		End:            in.End.UTC(),
		Status:         BookingStatusPending,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.bookingStore.Create(ctx, booking)
}

// ConfirmPayment admits a PENDING booking into the admitted set. The
// in-process slot lock only fast-fails obvious local races; the store's
// uniqueness constraint over (resource, start, end) restricted to CONFIRMED
// rows is the real serialization point, so exactly one of any set of
// concurrent confirmations for an overlapping interval wins. The loser's
// booking is auto-cancelled and the caller sees ErrBookingConflict.
func (s *Service) ConfirmPayment(ctx context.Context, bookingID string) (Booking, error) {
	startedAt := s.now()
	booking, err := s.confirmPayment(ctx, bookingID)
	s.observeOperation(ctx, startedAt, "booking_confirm", err, map[string]any{
		"booking_id": bookingID,
	})
	if err != nil {
		return Booking{}, s.mapError(err)
	}
	s.emit(ctx, newLifecycleEvent(EventBookingPaymentConfirmed, booking.TenantID, "", booking.ID, s.now(), map[string]any{
		"resource_id":       booking.ResourceID,
		"verification_code": booking.VerificationCode,
	}))
	return booking, nil
}

func (s *Service) confirmPayment(ctx context.Context, bookingID string) (Booking, error) {
	if s == nil || s.bookingStore == nil {
		return Booking{}, fmt.Errorf("core: booking store is not configured")
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return Booking{}, fmt.Errorf("core: booking id is required")
	}

	booking, err := s.bookingStore.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if booking.Status != BookingStatusPending {
		return Booking{}, fmt.Errorf("%w: %s -> %s", ErrInvalidBookingStatusTransition, booking.Status, BookingStatusConfirmed)
	}

	confirmed, err := s.confirmAdmitted(ctx, booking)
	if err == nil {
		return confirmed, nil
	}
	if errors.Is(err, ErrBookingConflict) {
		if _, cancelErr := s.bookingStore.Cancel(ctx, bookingID, "admission conflict", s.now()); cancelErr != nil {
			s.logError(ctx, "auto-cancel after conflict failed", map[string]any{
				"booking_id": bookingID,
				"error":      cancelErr.Error(),
			})
		}
	}
	return Booking{}, err
}

func (s *Service) confirmAdmitted(ctx context.Context, booking Booking) (Booking, error) {
	if s.slotLocker != nil {
		handle, lockErr := s.slotLocker.Acquire(ctx, slotLockKey(booking.ResourceID, booking.Start), s.config.Booking.SlotLockTTL)
		if lockErr != nil {
			if errors.Is(lockErr, ErrSlotLocked) {
				return Booking{}, fmt.Errorf("%w: slot is being confirmed by another request", ErrBookingConflict)
			}
			return Booking{}, lockErr
		}
		defer func() {
			if unlockErr := handle.Unlock(ctx); unlockErr != nil {
				s.logError(ctx, "slot lock release failed", map[string]any{
					"booking_id": booking.ID,
					"error":      unlockErr.Error(),
				})
			}
		}()
	}
	return s.confirmWithCode(ctx, booking.ID)
}

func (s *Service) confirmWithCode(ctx context.Context, bookingID string) (Booking, error) {
	attempts := s.config.Booking.CodeMaxAttempts
	if attempts <= 0 {
		attempts = defaultCodeMaxAttempts
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		code, err := s.codeGenerator.Generate()
		if err != nil {
			return Booking{}, err
		}
		confirmed, err := s.bookingStore.Confirm(ctx, bookingID, code, s.now())
		if err == nil {
			return confirmed, nil
		}
		if !errors.Is(err, ErrCodeCollision) {
			return Booking{}, err
		}
		lastErr = err
	}
	return Booking{}, fmt.Errorf("core: verification code generation exhausted %d attempts: %w", attempts, lastErr)
}

// CancelBooking moves any non-terminal booking to CANCELLED. Cancelling an
// already cancelled booking is a no-op success. Cancellation frees the
// interval for future requests; it never retroactively invalidates a slot
// already granted to someone else.
func (s *Service) CancelBooking(ctx context.Context, bookingID, reason string) (Booking, error) {
	startedAt := s.now()
	booking, cancelled, err := s.cancelBooking(ctx, bookingID, reason)
	s.observeOperation(ctx, startedAt, "booking_cancel", err, map[string]any{
		"booking_id": bookingID,
	})
	if err != nil {
		return Booking{}, s.mapError(err)
	}
	if cancelled {
		s.emit(ctx, newLifecycleEvent(EventBookingCancelled, booking.TenantID, "", booking.ID, s.now(), map[string]any{
			"resource_id": booking.ResourceID,
			"reason":      reason,
		}))
	}
	return booking, nil
}

func (s *Service) cancelBooking(ctx context.Context, bookingID, reason string) (Booking, bool, error) {
	if s == nil || s.bookingStore == nil {
		return Booking{}, false, fmt.Errorf("core: booking store is not configured")
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return Booking{}, false, fmt.Errorf("core: booking id is required")
	}
	booking, err := s.bookingStore.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, false, err
	}
	if booking.Status == BookingStatusCancelled {
		return booking, false, nil
	}
	cancelled, err := s.bookingStore.Cancel(ctx, bookingID, strings.TrimSpace(reason), s.now())
	if err != nil {
		return Booking{}, false, err
	}
	return cancelled, true, nil
}

// ReapExpiredBookings cancels PENDING bookings whose payment window elapsed,
// freeing their tentative holds. It runs on a fixed interval, independent of
// any request lifecycle, and returns the number of bookings reaped.
func (s *Service) ReapExpiredBookings(ctx context.Context, now time.Time) (int, error) {
	startedAt := s.now()
	reaped, err := s.reapExpiredBookings(ctx, now)
	s.observeOperation(ctx, startedAt, "booking_reap", err, map[string]any{
		"reaped": len(reaped),
	})
	if err != nil {
		return 0, s.mapError(err)
	}
	for _, booking := range reaped {
		s.emit(ctx, newLifecycleEvent(EventBookingReaped, booking.TenantID, "", booking.ID, s.now(), map[string]any{
			"resource_id": booking.ResourceID,
		}))
	}
	return len(reaped), nil
}

func (s *Service) reapExpiredBookings(ctx context.Context, now time.Time) ([]Booking, error) {
	if s == nil || s.bookingStore == nil {
		return nil, fmt.Errorf("core: booking store is not configured")
	}
	if now.IsZero() {
		now = s.now()
	}
	ttl := s.config.Booking.PaymentTTL
	if ttl <= 0 {
		ttl = DefaultConfig().Booking.PaymentTTL
	}
	cutoff := now.Add(-ttl)
	return s.bookingStore.ReapPending(ctx, cutoff, now)
}

func (s *Service) GetBooking(ctx context.Context, id string) (Booking, error) {
	if s == nil || s.bookingStore == nil {
		return Booking{}, fmt.Errorf("core: booking store is not configured")
	}
	booking, err := s.bookingStore.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return Booking{}, s.mapError(err)
	}
	return booking, nil
}

// ListBookings returns bookings on a resource intersecting [from, to).
func (s *Service) ListBookings(ctx context.Context, resourceID string, from, to time.Time) ([]Booking, error) {
	if s == nil || s.bookingStore == nil {
		return nil, fmt.Errorf("core: booking store is not configured")
	}
	bookings, err := s.bookingStore.ListByResource(ctx, strings.TrimSpace(resourceID), from, to)
	if err != nil {
		return nil, s.mapError(err)
	}
	return bookings, nil
}

// UpsertResource registers or updates a bookable resource and its slot rule.
func (s *Service) UpsertResource(ctx context.Context, in UpsertResourceInput) (Resource, error) {
	if s == nil || s.resourceStore == nil {
		return Resource{}, fmt.Errorf("core: resource store is not configured")
	}
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.Name = strings.TrimSpace(in.Name)
	if in.TenantID == "" || in.Name == "" {
		return Resource{}, s.mapError(fmt.Errorf("core: tenant id and name are required"))
	}
	if err := in.Rule.Validate(); err != nil {
		return Resource{}, s.mapError(err)
	}
	resource, err := s.resourceStore.Upsert(ctx, in)
	if err != nil {
		return Resource{}, s.mapError(err)
	}
	return resource, nil
}

func (s *Service) GetResource(ctx context.Context, id string) (Resource, error) {
	if s == nil || s.resourceStore == nil {
		return Resource{}, fmt.Errorf("core: resource store is not configured")
	}
	resource, err := s.resourceStore.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return Resource{}, s.mapError(err)
	}
	return resource, nil
}
