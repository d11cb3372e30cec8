package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type ApproveConfigInput struct {
	ID              string
	ExpectedVersion int
	ReviewNote      string
	ApprovedBy      string
}

type RejectConfigInput struct {
	ID              string
	ExpectedVersion int
	ReviewNote      string
	ReviewedBy      string
}

type PublishConfigInput struct {
	ID              string
	ExpectedVersion int
}

// SubmitConfig validates the document against the module's registered schema
// and lands it in submitted state. A document following a published or
// rejected row always starts a fresh version; an open draft or submitted row
// is advanced in place, still bumping the version.
func (s *Service) SubmitConfig(ctx context.Context, in SubmitConfigInput) (ModuleConfig, error) {
	startedAt := s.now()
	config, err := s.submitConfig(ctx, in)
	s.observeOperation(ctx, startedAt, "config_submit", err, map[string]any{
		"tenant_id":  in.TenantID,
		"module_key": in.ModuleKey,
	})
	if err != nil {
		return ModuleConfig{}, s.mapError(err)
	}
	return config, nil
}

func (s *Service) submitConfig(ctx context.Context, in SubmitConfigInput) (ModuleConfig, error) {
	if s == nil || s.configStore == nil {
		return ModuleConfig{}, fmt.Errorf("core: config store is not configured")
	}
	tenantID := strings.TrimSpace(in.TenantID)
	moduleKey := strings.TrimSpace(in.ModuleKey)
	if tenantID == "" || moduleKey == "" {
		return ModuleConfig{}, fmt.Errorf("core: tenant id and module key are required")
	}
	if len(in.ConfigJSON) == 0 {
		return ModuleConfig{}, fmt.Errorf("%w: empty document", ErrValidation)
	}

	schemaRef, err := s.schemaRegistry.Validate(ctx, moduleKey, in.ConfigJSON)
	if err != nil {
		return ModuleConfig{}, err
	}

	now := s.now()
	latest, err := s.configStore.Latest(ctx, tenantID, moduleKey)
	switch {
	case err == nil && (latest.Status == ConfigStatusDraft || latest.Status == ConfigStatusSubmitted):
		expected := latest.Version
		latest.ConfigJSON = in.ConfigJSON
		latest.SchemaRef = schemaRef
		latest.SubmittedBy = strings.TrimSpace(in.SubmittedBy)
		if err := latest.TransitionTo(ConfigStatusSubmitted, now); err != nil {
			return ModuleConfig{}, err
		}
		submittedAt := now
		latest.SubmittedAt = &submittedAt
		latest.Version = expected + 1
		return s.configStore.UpdateVersioned(ctx, latest, expected)
	case err == nil:
		return s.createSubmitted(ctx, in, schemaRef, latest.Version+1)
	case isNotFound(err):
		return s.createSubmitted(ctx, in, schemaRef, 1)
	default:
		return ModuleConfig{}, err
	}
}

func (s *Service) createSubmitted(ctx context.Context, in SubmitConfigInput, schemaRef string, version int) (ModuleConfig, error) {
	now := s.now()
	config := ModuleConfig{
		TenantID:    strings.TrimSpace(in.TenantID),
		ModuleKey:   strings.TrimSpace(in.ModuleKey),
		ConfigJSON:  in.ConfigJSON,
		SchemaRef:   schemaRef,
		Version:     version,
		Status:      ConfigStatusDraft,
		SubmittedBy: strings.TrimSpace(in.SubmittedBy),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := config.TransitionTo(ConfigStatusSubmitted, now); err != nil {
		return ModuleConfig{}, err
	}
	return s.configStore.Create(ctx, config)
}

// ApproveConfig moves a submitted document to approved. The caller presents
// the version it last observed; a concurrent writer that already advanced
// the document forces ErrVersionConflict, never a silent overwrite.
func (s *Service) ApproveConfig(ctx context.Context, in ApproveConfigInput) (ModuleConfig, error) {
	startedAt := s.now()
	config, err := s.transitionConfig(ctx, in.ID, in.ExpectedVersion, ConfigStatusApproved, in.ReviewNote, in.ApprovedBy)
	s.observeOperation(ctx, startedAt, "config_approve", err, map[string]any{
		"config_id": in.ID,
	})
	if err != nil {
		return ModuleConfig{}, s.mapError(err)
	}
	return config, nil
}

// RejectConfig moves a submitted document to rejected; the review note is
// mandatory so the editor knows what to fix.
func (s *Service) RejectConfig(ctx context.Context, in RejectConfigInput) (ModuleConfig, error) {
	startedAt := s.now()
	var config ModuleConfig
	err := func() error {
		if strings.TrimSpace(in.ReviewNote) == "" {
			return fmt.Errorf("%w: review note is required to reject", ErrValidation)
		}
		var err error
		config, err = s.transitionConfig(ctx, in.ID, in.ExpectedVersion, ConfigStatusRejected, in.ReviewNote, in.ReviewedBy)
		return err
	}()
	s.observeOperation(ctx, startedAt, "config_reject", err, map[string]any{
		"config_id": in.ID,
	})
	if err != nil {
		return ModuleConfig{}, s.mapError(err)
	}
	return config, nil
}

// PublishConfig makes an approved document the authoritative one for its
// (tenant, module) pair, demoting the previously published row in the same
// transaction so exactly one published row remains.
func (s *Service) PublishConfig(ctx context.Context, in PublishConfigInput) (ModuleConfig, error) {
	startedAt := s.now()
	config, err := s.publishConfig(ctx, in)
	s.observeOperation(ctx, startedAt, "config_publish", err, map[string]any{
		"config_id": in.ID,
	})
	if err != nil {
		return ModuleConfig{}, s.mapError(err)
	}
	s.emit(ctx, newLifecycleEvent(EventConfigPublished, config.TenantID, config.ModuleKey, config.ID, s.now(), map[string]any{
		"version":    config.Version,
		"schema_ref": config.SchemaRef,
	}))
	return config, nil
}

func (s *Service) publishConfig(ctx context.Context, in PublishConfigInput) (ModuleConfig, error) {
	if s == nil || s.configStore == nil {
		return ModuleConfig{}, fmt.Errorf("core: config store is not configured")
	}
	config, err := s.configStore.Get(ctx, strings.TrimSpace(in.ID))
	if err != nil {
		return ModuleConfig{}, err
	}
	if config.Version != in.ExpectedVersion {
		return ModuleConfig{}, fmt.Errorf("%w: expected version %d, have %d", ErrVersionConflict, in.ExpectedVersion, config.Version)
	}
	if config.Status != ConfigStatusApproved {
		return ModuleConfig{}, fmt.Errorf("%w: %s -> %s", ErrInvalidConfigStatusTransition, config.Status, ConfigStatusPublished)
	}
	now := s.now()
	if err := config.TransitionTo(ConfigStatusPublished, now); err != nil {
		return ModuleConfig{}, err
	}
	config.Version = in.ExpectedVersion + 1
	return s.configStore.Publish(ctx, config, in.ExpectedVersion)
}

func (s *Service) transitionConfig(
	ctx context.Context,
	id string,
	expectedVersion int,
	next ConfigStatus,
	reviewNote string,
	actor string,
) (ModuleConfig, error) {
	if s == nil || s.configStore == nil {
		return ModuleConfig{}, fmt.Errorf("core: config store is not configured")
	}
	config, err := s.configStore.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return ModuleConfig{}, err
	}
	if config.Version != expectedVersion {
		return ModuleConfig{}, fmt.Errorf("%w: expected version %d, have %d", ErrVersionConflict, expectedVersion, config.Version)
	}
	if config.Status != ConfigStatusSubmitted {
		return ModuleConfig{}, fmt.Errorf("%w: %s -> %s", ErrInvalidConfigStatusTransition, config.Status, next)
	}

	now := s.now()
	if err := config.TransitionTo(next, now); err != nil {
		return ModuleConfig{}, err
	}
	config.Version = expectedVersion + 1
	if note := strings.TrimSpace(reviewNote); note != "" {
		config.ReviewNote = note
	}
	if next == ConfigStatusApproved {
		config.ApprovedBy = strings.TrimSpace(actor)
	}
	return s.configStore.UpdateVersioned(ctx, config, expectedVersion)
}

func (s *Service) GetConfig(ctx context.Context, id string) (ModuleConfig, error) {
	if s == nil || s.configStore == nil {
		return ModuleConfig{}, fmt.Errorf("core: config store is not configured")
	}
	config, err := s.configStore.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return ModuleConfig{}, s.mapError(err)
	}
	return config, nil
}

// ConfigHistory returns every version for the pair, newest first.
func (s *Service) ConfigHistory(ctx context.Context, tenantID, moduleKey string) ([]ModuleConfig, error) {
	if s == nil || s.configStore == nil {
		return nil, fmt.Errorf("core: config store is not configured")
	}
	history, err := s.configStore.History(ctx, strings.TrimSpace(tenantID), strings.TrimSpace(moduleKey))
	if err != nil {
		return nil, s.mapError(err)
	}
	return history, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrConfigNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrResourceNotFound) ||
		errors.Is(err, ErrNoPublishedConfig)
}
