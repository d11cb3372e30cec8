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

type ResourceStore struct {
	db   *bun.DB
	repo repository.Repository[*resourceRecord]
}

func NewResourceStore(db *bun.DB) (*ResourceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*resourceRecord](db, resourceHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid resource repository wiring: %w", err)
		}
	}
	return &ResourceStore{db: db, repo: repo}, nil
}

func (s *ResourceStore) Get(ctx context.Context, id string) (core.Resource, error) {
	if s == nil || s.db == nil {
		return core.Resource{}, fmt.Errorf("sqlstore: resource store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Resource{}, fmt.Errorf("sqlstore: resource id is required")
	}
	record := &resourceRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Resource{}, fmt.Errorf("%w: id %q", core.ErrResourceNotFound, id)
		}
		return core.Resource{}, err
	}
	return record.toDomain()
}

func (s *ResourceStore) Upsert(ctx context.Context, in core.UpsertResourceInput) (core.Resource, error) {
	if s == nil || s.db == nil {
		return core.Resource{}, fmt.Errorf("sqlstore: resource store is not configured")
	}
	now := time.Now().UTC()
	resource := core.Resource{
		ID:           strings.TrimSpace(in.ID),
		TenantID:     in.TenantID,
		Name:         in.Name,
		ResourceType: in.ResourceType,
		Rule:         in.Rule,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	record, err := newResourceRecord(resource)
	if err != nil {
		return core.Resource{}, err
	}
	var out core.Resource
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &resourceRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.id = ?", record.ID).
			Limit(1).
			Scan(ctx)
		switch {
		case err == sql.ErrNoRows:
			if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			record.CreatedAt = existing.CreatedAt
			if _, err := tx.NewUpdate().
				Model(record).
				Where("id = ?", record.ID).
				Exec(ctx); err != nil {
				return err
			}
		}
		domain, err := record.toDomain()
		if err != nil {
			return err
		}
		out = domain
		return nil
	})
	if err != nil {
		return core.Resource{}, err
	}
	return out, nil
}
