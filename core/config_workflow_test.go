package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSubmitApprovePublishFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submitted := env.submitConfig(t, "tenant_1", "bookings")
	if submitted.Status != ConfigStatusSubmitted {
		t.Fatalf("expected submitted status, got %s", submitted.Status)
	}
	if submitted.Version != 1 {
		t.Fatalf("expected first submission at version 1, got %d", submitted.Version)
	}
	if submitted.SchemaRef == "" {
		t.Fatalf("expected schema ref to be recorded at submission")
	}

	approved, err := env.svc.ApproveConfig(ctx, ApproveConfigInput{
		ID:              submitted.ID,
		ExpectedVersion: submitted.Version,
		ApprovedBy:      "reviewer_1",
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != ConfigStatusApproved || approved.Version != 2 {
		t.Fatalf("expected approved at version 2, got %s v%d", approved.Status, approved.Version)
	}
	if approved.ApprovedBy != "reviewer_1" {
		t.Fatalf("expected approver to be recorded")
	}

	published, err := env.svc.PublishConfig(ctx, PublishConfigInput{
		ID:              approved.ID,
		ExpectedVersion: approved.Version,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.Status != ConfigStatusPublished || published.Version != 3 {
		t.Fatalf("expected published at version 3, got %s v%d", published.Status, published.Version)
	}

	events := env.sink.Drain()
	if len(events) != 1 || events[0].Type != EventConfigPublished {
		t.Fatalf("expected one %s event, got %+v", EventConfigPublished, events)
	}
}

func TestApproveStaleVersionConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submitted := env.submitConfig(t, "tenant_1", "bookings")

	// A second editor advances the document before the reviewer acts.
	resubmitted, err := env.svc.SubmitConfig(ctx, SubmitConfigInput{
		TenantID:    "tenant_1",
		ModuleKey:   "bookings",
		ConfigJSON:  json.RawMessage(`{"enabled": false}`),
		SubmittedBy: "editor_2",
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.ID != submitted.ID {
		t.Fatalf("expected the open submission to advance in place")
	}
	if resubmitted.Version != submitted.Version+1 {
		t.Fatalf("expected version bump on resubmit, got %d", resubmitted.Version)
	}

	_, err = env.svc.ApproveConfig(ctx, ApproveConfigInput{
		ID:              submitted.ID,
		ExpectedVersion: submitted.Version,
		ApprovedBy:      "reviewer_1",
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for stale review, got %v", err)
	}

	// Approving at the fresh version succeeds.
	if _, err := env.svc.ApproveConfig(ctx, ApproveConfigInput{
		ID:              submitted.ID,
		ExpectedVersion: resubmitted.Version,
		ApprovedBy:      "reviewer_1",
	}); err != nil {
		t.Fatalf("approve at current version: %v", err)
	}
}

func TestApproveAfterApprovalReportsVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submitted := env.submitConfig(t, "tenant_1", "bookings")

	approved, err := env.svc.ApproveConfig(ctx, ApproveConfigInput{
		ID:              submitted.ID,
		ExpectedVersion: submitted.Version,
		ApprovedBy:      "reviewer_1",
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	// A second reviewer races in with the version they observed before the
	// first approval landed. The stale fencing token wins the diagnosis:
	// they must see the conflict, not a status complaint.
	_, err = env.svc.ApproveConfig(ctx, ApproveConfigInput{
		ID:              submitted.ID,
		ExpectedVersion: submitted.Version,
		ApprovedBy:      "reviewer_2",
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for stale approve after approval, got %v", err)
	}

	published, err := env.svc.PublishConfig(ctx, PublishConfigInput{
		ID:              approved.ID,
		ExpectedVersion: approved.Version,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	// Same contract on the publish path: a stale publisher sees the version
	// conflict even though the row is no longer approved.
	_, err = env.svc.PublishConfig(ctx, PublishConfigInput{
		ID:              published.ID,
		ExpectedVersion: approved.Version,
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for stale publish after publish, got %v", err)
	}
}

func TestRejectRequiresReviewNote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submitted := env.submitConfig(t, "tenant_1", "bookings")

	_, err := env.svc.RejectConfig(ctx, RejectConfigInput{
		ID:              submitted.ID,
		ExpectedVersion: submitted.Version,
		ReviewedBy:      "reviewer_1",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without a note, got %v", err)
	}

	rejected, err := env.svc.RejectConfig(ctx, RejectConfigInput{
		ID:              submitted.ID,
		ExpectedVersion: submitted.Version,
		ReviewNote:      "max_per_day missing",
		ReviewedBy:      "reviewer_1",
	})
	if err != nil {
		t.Fatalf("reject with note: %v", err)
	}
	if rejected.Status != ConfigStatusRejected || rejected.ReviewNote != "max_per_day missing" {
		t.Fatalf("expected rejected with note, got %s %q", rejected.Status, rejected.ReviewNote)
	}
}

func TestResubmitAfterRejectionStartsFreshVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submitted := env.submitConfig(t, "tenant_1", "bookings")
	rejected, err := env.svc.RejectConfig(ctx, RejectConfigInput{
		ID:              submitted.ID,
		ExpectedVersion: submitted.Version,
		ReviewNote:      "needs limits",
		ReviewedBy:      "reviewer_1",
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}

	fresh := env.submitConfig(t, "tenant_1", "bookings")
	if fresh.ID == rejected.ID {
		t.Fatalf("expected a fresh row after rejection")
	}
	if fresh.Version != rejected.Version+1 {
		t.Fatalf("expected resubmission at version %d, got %d", rejected.Version+1, fresh.Version)
	}
	if fresh.Status != ConfigStatusSubmitted {
		t.Fatalf("expected fresh submission, got %s", fresh.Status)
	}
}

func TestPublishDemotesPreviousPublished(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.submitConfig(t, "tenant_1", "bookings")
	approved, err := env.svc.ApproveConfig(ctx, ApproveConfigInput{ID: first.ID, ExpectedVersion: first.Version})
	if err != nil {
		t.Fatalf("approve first: %v", err)
	}
	firstPublished, err := env.svc.PublishConfig(ctx, PublishConfigInput{ID: approved.ID, ExpectedVersion: approved.Version})
	if err != nil {
		t.Fatalf("publish first: %v", err)
	}

	second := env.submitConfig(t, "tenant_1", "bookings")
	if second.Version != firstPublished.Version+1 {
		t.Fatalf("expected submission after publish at version %d, got %d", firstPublished.Version+1, second.Version)
	}
	secondApproved, err := env.svc.ApproveConfig(ctx, ApproveConfigInput{ID: second.ID, ExpectedVersion: second.Version})
	if err != nil {
		t.Fatalf("approve second: %v", err)
	}
	secondPublished, err := env.svc.PublishConfig(ctx, PublishConfigInput{ID: secondApproved.ID, ExpectedVersion: secondApproved.Version})
	if err != nil {
		t.Fatalf("publish second: %v", err)
	}

	history, err := env.svc.ConfigHistory(ctx, "tenant_1", "bookings")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	publishedRows := 0
	for _, row := range history {
		if row.Status == ConfigStatusPublished {
			publishedRows++
		}
	}
	if publishedRows != 1 {
		t.Fatalf("expected exactly one published row, got %d", publishedRows)
	}

	demoted, err := env.svc.GetConfig(ctx, firstPublished.ID)
	if err != nil {
		t.Fatalf("get demoted: %v", err)
	}
	if demoted.Status != ConfigStatusArchived {
		t.Fatalf("expected prior published row to be archived, got %s", demoted.Status)
	}

	current, err := env.svc.GetConfig(ctx, secondPublished.ID)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if current.Status != ConfigStatusPublished {
		t.Fatalf("expected new row to be published, got %s", current.Status)
	}
}

func TestPublishRequiresApprovedStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submitted := env.submitConfig(t, "tenant_1", "bookings")
	_, err := env.svc.PublishConfig(ctx, PublishConfigInput{ID: submitted.ID, ExpectedVersion: submitted.Version})
	if !errors.Is(err, ErrInvalidConfigStatusTransition) {
		t.Fatalf("expected invalid transition publishing a submitted doc, got %v", err)
	}
}

func TestSubmitRejectsUnregisteredModuleAndBadDocuments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.SubmitConfig(ctx, SubmitConfigInput{
		TenantID:   "tenant_1",
		ModuleKey:  "unknown_module",
		ConfigJSON: json.RawMessage(`{"enabled": true}`),
	})
	if !errors.Is(err, ErrSchemaNotRegistered) {
		t.Fatalf("expected ErrSchemaNotRegistered, got %v", err)
	}

	_, err = env.svc.SubmitConfig(ctx, SubmitConfigInput{
		TenantID:   "tenant_1",
		ModuleKey:  "bookings",
		ConfigJSON: json.RawMessage(`{"max_per_day": 3}`),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for document missing required field, got %v", err)
	}

	_, err = env.svc.SubmitConfig(ctx, SubmitConfigInput{
		TenantID:   "tenant_1",
		ModuleKey:  "bookings",
		ConfigJSON: json.RawMessage(`{"enabled": "yes"}`),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for wrong type, got %v", err)
	}
}
