package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

type moduleConfigRecord struct {
	bun.BaseModel `bun:"table:tenant_module_configs,alias:tmc"`

	ID          string          `bun:"id,pk"`
	TenantID    string          `bun:"tenant_id,notnull"`
	ModuleKey   string          `bun:"module_key,notnull"`
	ConfigJSON  json.RawMessage `bun:"config,type:jsonb,notnull"`
	SchemaRef   string          `bun:"schema_ref"`
	Version     int             `bun:"version,notnull"`
	Status      string          `bun:"status,notnull"`
	ReviewNote  string          `bun:"review_note"`
	SubmittedBy string          `bun:"submitted_by"`
	ApprovedBy  string          `bun:"approved_by"`
	SubmittedAt *time.Time      `bun:"submitted_at,nullzero"`
	ApprovedAt  *time.Time      `bun:"approved_at,nullzero"`
	PublishedAt *time.Time      `bun:"published_at,nullzero"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type entitlementRecord struct {
	bun.BaseModel `bun:"table:tenant_entitlements,alias:te"`

	ID        string     `bun:"id,pk"`
	TenantID  string     `bun:"tenant_id,notnull"`
	ModuleKey string     `bun:"module_key,notnull"`
	Status    string     `bun:"status,notnull"`
	ExpiresAt *time.Time `bun:"expires_at,nullzero"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type resourceRecord struct {
	bun.BaseModel `bun:"table:resources,alias:rs"`

	ID           string          `bun:"id,pk"`
	TenantID     string          `bun:"tenant_id,notnull"`
	Name         string          `bun:"name,notnull"`
	ResourceType string          `bun:"resource_type,notnull"`
	Rule         json.RawMessage `bun:"slot_rule,type:jsonb,notnull"`
	CreatedAt    time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type bookingRecord struct {
	bun.BaseModel `bun:"table:bookings,alias:bk"`

	ID               string    `bun:"id,pk"`
	ResourceID       string    `bun:"resource_id,notnull"`
	TenantID         string    `bun:"tenant_id,notnull"`
	UserID           string    `bun:"user_id,notnull"`
	StartAt          time.Time `bun:"start_at,notnull"`
	EndAt            time.Time `bun:"end_at,notnull"`
	Status           string    `bun:"status,notnull"`
	VerificationCode string    `bun:"verification_code"`
	IdempotencyKey   string    `bun:"idempotency_key"`
	CancelReason     string    `bun:"cancel_reason"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
