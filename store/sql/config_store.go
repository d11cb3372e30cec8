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

// ConfigStore persists the versioned config workflow. Optimistic concurrency
// rides on the version column: every write carries WHERE version = expected
// and zero affected rows means another writer advanced the document first.
type ConfigStore struct {
	db   *bun.DB
	repo repository.Repository[*moduleConfigRecord]
}

func NewConfigStore(db *bun.DB) (*ConfigStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*moduleConfigRecord](db, moduleConfigHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid module config repository wiring: %w", err)
		}
	}
	return &ConfigStore{db: db, repo: repo}, nil
}

func (s *ConfigStore) Create(ctx context.Context, config core.ModuleConfig) (core.ModuleConfig, error) {
	if s == nil || s.db == nil {
		return core.ModuleConfig{}, fmt.Errorf("sqlstore: config store is not configured")
	}
	record := newModuleConfigRecord(config)
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.ModuleConfig{}, err
	}
	return record.toDomain(), nil
}

func (s *ConfigStore) Get(ctx context.Context, id string) (core.ModuleConfig, error) {
	if s == nil || s.db == nil {
		return core.ModuleConfig{}, fmt.Errorf("sqlstore: config store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.ModuleConfig{}, fmt.Errorf("sqlstore: config id is required")
	}
	record := &moduleConfigRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.ModuleConfig{}, fmt.Errorf("%w: id %q", core.ErrConfigNotFound, id)
		}
		return core.ModuleConfig{}, err
	}
	return record.toDomain(), nil
}

func (s *ConfigStore) Latest(ctx context.Context, tenantID, moduleKey string) (core.ModuleConfig, error) {
	if s == nil || s.db == nil {
		return core.ModuleConfig{}, fmt.Errorf("sqlstore: config store is not configured")
	}
	record := &moduleConfigRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.module_key = ?", strings.TrimSpace(moduleKey)).
		OrderExpr("?TableAlias.version DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.ModuleConfig{}, fmt.Errorf("%w: %s/%s", core.ErrConfigNotFound, tenantID, moduleKey)
		}
		return core.ModuleConfig{}, err
	}
	return record.toDomain(), nil
}

func (s *ConfigStore) Published(ctx context.Context, tenantID, moduleKey string) (core.ModuleConfig, error) {
	if s == nil || s.db == nil {
		return core.ModuleConfig{}, fmt.Errorf("sqlstore: config store is not configured")
	}
	record := &moduleConfigRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.module_key = ?", strings.TrimSpace(moduleKey)).
		Where("?TableAlias.status = ?", string(core.ConfigStatusPublished)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.ModuleConfig{}, fmt.Errorf("%w: %s/%s", core.ErrNoPublishedConfig, tenantID, moduleKey)
		}
		return core.ModuleConfig{}, err
	}
	return record.toDomain(), nil
}

func (s *ConfigStore) History(ctx context.Context, tenantID, moduleKey string) ([]core.ModuleConfig, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: config store is not configured")
	}
	records := []*moduleConfigRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.module_key = ?", strings.TrimSpace(moduleKey)).
		OrderExpr("?TableAlias.version DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.ModuleConfig, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *ConfigStore) UpdateVersioned(ctx context.Context, config core.ModuleConfig, expectedVersion int) (core.ModuleConfig, error) {
	if s == nil || s.db == nil {
		return core.ModuleConfig{}, fmt.Errorf("sqlstore: config store is not configured")
	}
	var out core.ModuleConfig
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		updated, err := updateConfigVersionedTx(ctx, tx, config, expectedVersion)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return core.ModuleConfig{}, err
	}
	return out, nil
}

func (s *ConfigStore) Publish(ctx context.Context, config core.ModuleConfig, expectedVersion int) (core.ModuleConfig, error) {
	if s == nil || s.db == nil {
		return core.ModuleConfig{}, fmt.Errorf("sqlstore: config store is not configured")
	}
	var out core.ModuleConfig
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Demote the prior published row before the versioned update lands
		// the new one, so the single-published partial index never trips.
		if _, err := tx.NewUpdate().
			Model((*moduleConfigRecord)(nil)).
			Set("status = ?", string(core.ConfigStatusArchived)).
			Set("updated_at = ?", time.Now().UTC()).
			Where("tenant_id = ?", config.TenantID).
			Where("module_key = ?", config.ModuleKey).
			Where("status = ?", string(core.ConfigStatusPublished)).
			Where("id <> ?", config.ID).
			Exec(ctx); err != nil {
			return err
		}
		updated, err := updateConfigVersionedTx(ctx, tx, config, expectedVersion)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return core.ModuleConfig{}, err
	}
	return out, nil
}

func updateConfigVersionedTx(ctx context.Context, tx bun.Tx, config core.ModuleConfig, expectedVersion int) (core.ModuleConfig, error) {
	record := newModuleConfigRecord(config)
	result, err := tx.NewUpdate().
		Model(record).
		Where("id = ?", record.ID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return core.ModuleConfig{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.ModuleConfig{}, err
	}
	if affected == 0 {
		exists, err := tx.NewSelect().
			Model((*moduleConfigRecord)(nil)).
			Where("id = ?", record.ID).
			Exists(ctx)
		if err != nil {
			return core.ModuleConfig{}, err
		}
		if !exists {
			return core.ModuleConfig{}, fmt.Errorf("%w: id %q", core.ErrConfigNotFound, record.ID)
		}
		return core.ModuleConfig{}, fmt.Errorf("%w: expected version %d", core.ErrVersionConflict, expectedVersion)
	}
	return record.toDomain(), nil
}
