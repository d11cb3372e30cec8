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
)

// EntitlementStore toggles and reads tenant entitlements. Upsert is a single
// atomic write per (tenant, module) so a concurrent Get never observes a
// half-applied toggle.
type EntitlementStore struct {
	db   *bun.DB
	repo repository.Repository[*entitlementRecord]
}

func NewEntitlementStore(db *bun.DB) (*EntitlementStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*entitlementRecord](db, entitlementHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid entitlement repository wiring: %w", err)
		}
	}
	return &EntitlementStore{db: db, repo: repo}, nil
}

func (s *EntitlementStore) Get(ctx context.Context, tenantID, moduleKey string) (core.Entitlement, bool, error) {
	if s == nil || s.db == nil {
		return core.Entitlement{}, false, fmt.Errorf("sqlstore: entitlement store is not configured")
	}
	record := &entitlementRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.module_key = ?", strings.TrimSpace(moduleKey)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Entitlement{}, false, nil
		}
		return core.Entitlement{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *EntitlementStore) Upsert(ctx context.Context, in core.ToggleEntitlementInput) (core.Entitlement, error) {
	if s == nil || s.db == nil {
		return core.Entitlement{}, fmt.Errorf("sqlstore: entitlement store is not configured")
	}
	var out core.Entitlement
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		record := &entitlementRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.tenant_id = ?", in.TenantID).
			Where("?TableAlias.module_key = ?", in.ModuleKey).
			Limit(1).
			Scan(ctx)
		switch {
		case err == sql.ErrNoRows:
			record = &entitlementRecord{
				ID:        uuid.NewString(),
				TenantID:  in.TenantID,
				ModuleKey: in.ModuleKey,
				Status:    string(in.Status),
				ExpiresAt: cloneTimePointer(in.ExpiresAt),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
				if isUniqueViolation(err) {
					// Concurrent toggle landed first; apply ours on top of it.
					return upsertEntitlementUpdateTx(ctx, tx, in, now, &out)
				}
				return err
			}
			out = record.toDomain()
			return nil
		case err != nil:
			return err
		}
		return upsertEntitlementUpdateTx(ctx, tx, in, now, &out)
	})
	if err != nil {
		return core.Entitlement{}, err
	}
	return out, nil
}

func upsertEntitlementUpdateTx(ctx context.Context, tx bun.Tx, in core.ToggleEntitlementInput, now time.Time, out *core.Entitlement) error {
	if _, err := tx.NewUpdate().
		Model((*entitlementRecord)(nil)).
		Set("status = ?", string(in.Status)).
		Set("expires_at = ?", cloneTimePointer(in.ExpiresAt)).
		Set("updated_at = ?", now).
		Where("tenant_id = ?", in.TenantID).
		Where("module_key = ?", in.ModuleKey).
		Exec(ctx); err != nil {
		return err
	}
	record := &entitlementRecord{}
	if err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", in.TenantID).
		Where("?TableAlias.module_key = ?", in.ModuleKey).
		Limit(1).
		Scan(ctx); err != nil {
		return err
	}
	*out = record.toDomain()
	return nil
}
