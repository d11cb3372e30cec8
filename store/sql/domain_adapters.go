package sqlstore

import (
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-tenancy/core"
)

func newModuleConfigRecord(config core.ModuleConfig) *moduleConfigRecord {
	record := &moduleConfigRecord{
		ID:          config.ID,
		TenantID:    config.TenantID,
		ModuleKey:   config.ModuleKey,
		ConfigJSON:  append(json.RawMessage(nil), config.ConfigJSON...),
		SchemaRef:   config.SchemaRef,
		Version:     config.Version,
		Status:      string(config.Status),
		ReviewNote:  config.ReviewNote,
		SubmittedBy: config.SubmittedBy,
		ApprovedBy:  config.ApprovedBy,
		CreatedAt:   config.CreatedAt,
		UpdatedAt:   config.UpdatedAt,
	}
	record.SubmittedAt = cloneTimePointer(config.SubmittedAt)
	record.ApprovedAt = cloneTimePointer(config.ApprovedAt)
	record.PublishedAt = cloneTimePointer(config.PublishedAt)
	return record
}

func (r *moduleConfigRecord) toDomain() core.ModuleConfig {
	if r == nil {
		return core.ModuleConfig{}
	}
	return core.ModuleConfig{
		ID:          r.ID,
		TenantID:    r.TenantID,
		ModuleKey:   r.ModuleKey,
		ConfigJSON:  append(json.RawMessage(nil), r.ConfigJSON...),
		SchemaRef:   r.SchemaRef,
		Version:     r.Version,
		Status:      core.ConfigStatus(r.Status),
		ReviewNote:  r.ReviewNote,
		SubmittedBy: r.SubmittedBy,
		ApprovedBy:  r.ApprovedBy,
		SubmittedAt: cloneTimePointer(r.SubmittedAt),
		ApprovedAt:  cloneTimePointer(r.ApprovedAt),
		PublishedAt: cloneTimePointer(r.PublishedAt),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r *entitlementRecord) toDomain() core.Entitlement {
	if r == nil {
		return core.Entitlement{}
	}
	return core.Entitlement{
		ID:        r.ID,
		TenantID:  r.TenantID,
		ModuleKey: r.ModuleKey,
		Status:    core.EntitlementStatus(r.Status),
		ExpiresAt: cloneTimePointer(r.ExpiresAt),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func newResourceRecord(resource core.Resource) (*resourceRecord, error) {
	ruleJSON, err := json.Marshal(resource.Rule)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: encode slot rule: %w", err)
	}
	return &resourceRecord{
		ID:           resource.ID,
		TenantID:     resource.TenantID,
		Name:         resource.Name,
		ResourceType: resource.ResourceType,
		Rule:         ruleJSON,
		CreatedAt:    resource.CreatedAt,
		UpdatedAt:    resource.UpdatedAt,
	}, nil
}

func (r *resourceRecord) toDomain() (core.Resource, error) {
	if r == nil {
		return core.Resource{}, nil
	}
	resource := core.Resource{
		ID:           r.ID,
		TenantID:     r.TenantID,
		Name:         r.Name,
		ResourceType: r.ResourceType,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(r.Rule) > 0 {
		if err := json.Unmarshal(r.Rule, &resource.Rule); err != nil {
			return core.Resource{}, fmt.Errorf("sqlstore: decode slot rule for resource %s: %w", r.ID, err)
		}
	}
	return resource, nil
}

func newBookingRecord(booking core.Booking) *bookingRecord {
	return &bookingRecord{
		ID:               booking.ID,
		ResourceID:       booking.ResourceID,
		TenantID:         booking.TenantID,
		UserID:           booking.UserID,
		StartAt:          booking.Start.UTC(),
		EndAt:            booking.End.UTC(),
		Status:           string(booking.Status),
		VerificationCode: booking.VerificationCode,
		IdempotencyKey:   booking.IdempotencyKey,
		CancelReason:     booking.CancelReason,
		CreatedAt:        booking.CreatedAt,
		UpdatedAt:        booking.UpdatedAt,
	}
}

func (r *bookingRecord) toDomain() core.Booking {
	if r == nil {
		return core.Booking{}
	}
	return core.Booking{
		ID:               r.ID,
		ResourceID:       r.ResourceID,
		TenantID:         r.TenantID,
		UserID:           r.UserID,
		Start:            r.StartAt.UTC(),
		End:              r.EndAt.UTC(),
		Status:           core.BookingStatus(r.Status),
		VerificationCode: r.VerificationCode,
		IdempotencyKey:   r.IdempotencyKey,
		CancelReason:     r.CancelReason,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}
