package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-tenancy/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// BookingStore persists bookings and serializes admission. The CONFIRMED
// partial unique index over (resource_id, start_at, end_at) is the ground
// truth; Confirm surfaces its violations as core.ErrBookingConflict so
// concurrent confirmations for the same slot always have exactly one winner.
type BookingStore struct {
	db   *bun.DB
	repo repository.Repository[*bookingRecord]
}

func NewBookingStore(db *bun.DB) (*BookingStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*bookingRecord](db, bookingHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid booking repository wiring: %w", err)
		}
	}
	return &BookingStore{db: db, repo: repo}, nil
}

func (s *BookingStore) Create(ctx context.Context, booking core.Booking) (core.CreateBookingResult, error) {
	if s == nil || s.db == nil {
		return core.CreateBookingResult{}, fmt.Errorf("sqlstore: booking store is not configured")
	}
	if booking.IdempotencyKey != "" {
		existing, found, err := s.findByIdempotencyKey(ctx, booking.TenantID, booking.IdempotencyKey)
		if err != nil {
			return core.CreateBookingResult{}, err
		}
		if found {
			return core.CreateBookingResult{Booking: existing, Created: false}, nil
		}
	}
	record := newBookingRecord(booking)
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) && booking.IdempotencyKey != "" {
			// Lost the insert race to another request carrying the same key;
			// replay the winner's row.
			existing, found, ferr := s.findByIdempotencyKey(ctx, booking.TenantID, booking.IdempotencyKey)
			if ferr != nil {
				return core.CreateBookingResult{}, ferr
			}
			if found {
				return core.CreateBookingResult{Booking: existing, Created: false}, nil
			}
		}
		return core.CreateBookingResult{}, err
	}
	return core.CreateBookingResult{Booking: record.toDomain(), Created: true}, nil
}

func (s *BookingStore) Get(ctx context.Context, id string) (core.Booking, error) {
	if s == nil || s.db == nil {
		return core.Booking{}, fmt.Errorf("sqlstore: booking store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Booking{}, fmt.Errorf("sqlstore: booking id is required")
	}
	record := &bookingRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Booking{}, fmt.Errorf("%w: id %q", core.ErrBookingNotFound, id)
		}
		return core.Booking{}, err
	}
	return record.toDomain(), nil
}

func (s *BookingStore) ListByResource(ctx context.Context, resourceID string, from, to time.Time) ([]core.Booking, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: booking store is not configured")
	}
	records := []*bookingRecord{}
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.resource_id = ?", strings.TrimSpace(resourceID))
	if !from.IsZero() {
		query = query.Where("?TableAlias.end_at > ?", from.UTC())
	}
	if !to.IsZero() {
		query = query.Where("?TableAlias.start_at < ?", to.UTC())
	}
	if err := query.OrderExpr("?TableAlias.start_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.Booking, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *BookingStore) Confirm(ctx context.Context, id string, verificationCode string, now time.Time) (core.Booking, error) {
	if s == nil || s.db == nil {
		return core.Booking{}, fmt.Errorf("sqlstore: booking store is not configured")
	}
	var out core.Booking
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &bookingRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", id).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: id %q", core.ErrBookingNotFound, id)
			}
			return err
		}
		booking := record.toDomain()
		if err := booking.TransitionTo(core.BookingStatusConfirmed, now); err != nil {
			return err
		}
		// Serialize concurrent confirms per resource so the overlap count
		// below cannot race an uncommitted admission of a different but
		// overlapping interval. sqlite has a single writer already; the
		// row lock is a postgres concern.
		if s.db.Dialect().Name() == dialect.PG {
			locked := &resourceRecord{}
			err := tx.NewSelect().
				Model(locked).
				Where("?TableAlias.id = ?", record.ResourceID).
				For("UPDATE").
				Scan(ctx)
			if err != nil {
				if err == sql.ErrNoRows {
					return fmt.Errorf("%w: id %q", core.ErrResourceNotFound, record.ResourceID)
				}
				return err
			}
		}
		// Overlap pre-check keeps the common loser off the unique index
		// path; equal intervals still fall through to the index below.
		overlapping, err := tx.NewSelect().
			Model((*bookingRecord)(nil)).
			Where("resource_id = ?", record.ResourceID).
			Where("status = ?", string(core.BookingStatusConfirmed)).
			Where("id <> ?", record.ID).
			Where("start_at < ?", record.EndAt).
			Where("end_at > ?", record.StartAt).
			Count(ctx)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return fmt.Errorf("%w: slot %s already admitted", core.ErrBookingConflict, record.StartAt.Format(time.RFC3339))
		}
		booking.VerificationCode = verificationCode
		updated := newBookingRecord(booking)
		res, err := tx.NewUpdate().
			Model(updated).
			Where("id = ?", updated.ID).
			Where("status = ?", string(core.BookingStatusPending)).
			Exec(ctx)
		if err != nil {
			if isUniqueViolation(err) {
				return classifyConfirmViolation(err, booking)
			}
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			// A concurrent writer moved the row off PENDING between our
			// read and this update. Same error kinds as the sequential
			// paths: a vanished row is not-found, anything else is an
			// invalid transition from the status the winner left behind.
			current := &bookingRecord{}
			err := tx.NewSelect().
				Model(current).
				Where("?TableAlias.id = ?", id).
				Limit(1).
				Scan(ctx)
			if err != nil {
				if err == sql.ErrNoRows {
					return fmt.Errorf("%w: id %q", core.ErrBookingNotFound, id)
				}
				return err
			}
			return fmt.Errorf("%w: %s -> %s", core.ErrInvalidBookingStatusTransition, current.Status, core.BookingStatusConfirmed)
		}
		out = updated.toDomain()
		return nil
	})
	if err != nil {
		return core.Booking{}, err
	}
	return out, nil
}

// classifyConfirmViolation splits the two unique indexes that can fire during
// Confirm: the tenant verification-code index and the admitted-set index.
func classifyConfirmViolation(err error, booking core.Booking) error {
	if strings.Contains(strings.ToLower(err.Error()), "verification_code") {
		return fmt.Errorf("%w: code %q already active for tenant %s", core.ErrCodeCollision, booking.VerificationCode, booking.TenantID)
	}
	return fmt.Errorf("%w: slot %s already admitted", core.ErrBookingConflict, booking.Start.Format(time.RFC3339))
}

func (s *BookingStore) Cancel(ctx context.Context, id string, reason string, now time.Time) (core.Booking, error) {
	if s == nil || s.db == nil {
		return core.Booking{}, fmt.Errorf("sqlstore: booking store is not configured")
	}
	var out core.Booking
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &bookingRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", id).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: id %q", core.ErrBookingNotFound, id)
			}
			return err
		}
		booking := record.toDomain()
		if booking.Status == core.BookingStatusCancelled {
			out = booking
			return nil
		}
		if err := booking.TransitionTo(core.BookingStatusCancelled, now); err != nil {
			return err
		}
		booking.CancelReason = reason
		updated := newBookingRecord(booking)
		if _, err := tx.NewUpdate().
			Model(updated).
			Where("id = ?", updated.ID).
			Exec(ctx); err != nil {
			return err
		}
		out = updated.toDomain()
		return nil
	})
	if err != nil {
		return core.Booking{}, err
	}
	return out, nil
}

func (s *BookingStore) ReapPending(ctx context.Context, cutoff time.Time, now time.Time) ([]core.Booking, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: booking store is not configured")
	}
	var out []core.Booking
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		records := []*bookingRecord{}
		err := tx.NewSelect().
			Model(&records).
			Where("?TableAlias.status = ?", string(core.BookingStatusPending)).
			Where("?TableAlias.created_at <= ?", cutoff.UTC()).
			OrderExpr("?TableAlias.created_at ASC").
			Scan(ctx)
		if err != nil {
			return err
		}
		for _, record := range records {
			booking := record.toDomain()
			if err := booking.TransitionTo(core.BookingStatusCancelled, now); err != nil {
				return err
			}
			booking.CancelReason = "payment window elapsed"
			updated := newBookingRecord(booking)
			if _, err := tx.NewUpdate().
				Model(updated).
				Where("id = ?", updated.ID).
				Where("status = ?", string(core.BookingStatusPending)).
				Exec(ctx); err != nil {
				return err
			}
			out = append(out, updated.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BookingStore) findByIdempotencyKey(ctx context.Context, tenantID, key string) (core.Booking, bool, error) {
	record := &bookingRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", tenantID).
		Where("?TableAlias.idempotency_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Booking{}, false, nil
		}
		return core.Booking{}, false, err
	}
	return record.toDomain(), true, nil
}
