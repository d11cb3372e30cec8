package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-tenancy/core"
)

// MutatingService is the slice of the core service the command layer drives.
type MutatingService interface {
	SubmitConfig(ctx context.Context, in core.SubmitConfigInput) (core.ModuleConfig, error)
	ApproveConfig(ctx context.Context, in core.ApproveConfigInput) (core.ModuleConfig, error)
	RejectConfig(ctx context.Context, in core.RejectConfigInput) (core.ModuleConfig, error)
	PublishConfig(ctx context.Context, in core.PublishConfigInput) (core.ModuleConfig, error)
	ToggleEntitlement(ctx context.Context, in core.ToggleEntitlementInput) (core.Entitlement, error)
	UpsertResource(ctx context.Context, in core.UpsertResourceInput) (core.Resource, error)
	CreateBooking(ctx context.Context, in core.CreateBookingInput) (core.CreateBookingResult, error)
	ConfirmPayment(ctx context.Context, bookingID string) (core.Booking, error)
	CancelBooking(ctx context.Context, bookingID, reason string) (core.Booking, error)
	ReapExpiredBookings(ctx context.Context, now time.Time) (int, error)
}

type SubmitConfigCommand struct {
	service MutatingService
}

func NewSubmitConfigCommand(service MutatingService) *SubmitConfigCommand {
	return &SubmitConfigCommand{service: service}
}

func (c *SubmitConfigCommand) Execute(ctx context.Context, msg SubmitConfigMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: submit config service is required")
	}
	out, err := c.service.SubmitConfig(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ApproveConfigCommand struct {
	service MutatingService
}

func NewApproveConfigCommand(service MutatingService) *ApproveConfigCommand {
	return &ApproveConfigCommand{service: service}
}

func (c *ApproveConfigCommand) Execute(ctx context.Context, msg ApproveConfigMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: approve config service is required")
	}
	out, err := c.service.ApproveConfig(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RejectConfigCommand struct {
	service MutatingService
}

func NewRejectConfigCommand(service MutatingService) *RejectConfigCommand {
	return &RejectConfigCommand{service: service}
}

func (c *RejectConfigCommand) Execute(ctx context.Context, msg RejectConfigMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reject config service is required")
	}
	out, err := c.service.RejectConfig(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PublishConfigCommand struct {
	service MutatingService
}

func NewPublishConfigCommand(service MutatingService) *PublishConfigCommand {
	return &PublishConfigCommand{service: service}
}

func (c *PublishConfigCommand) Execute(ctx context.Context, msg PublishConfigMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: publish config service is required")
	}
	out, err := c.service.PublishConfig(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ToggleEntitlementCommand struct {
	service MutatingService
}

func NewToggleEntitlementCommand(service MutatingService) *ToggleEntitlementCommand {
	return &ToggleEntitlementCommand{service: service}
}

func (c *ToggleEntitlementCommand) Execute(ctx context.Context, msg ToggleEntitlementMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: toggle entitlement service is required")
	}
	out, err := c.service.ToggleEntitlement(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpsertResourceCommand struct {
	service MutatingService
}

func NewUpsertResourceCommand(service MutatingService) *UpsertResourceCommand {
	return &UpsertResourceCommand{service: service}
}

func (c *UpsertResourceCommand) Execute(ctx context.Context, msg UpsertResourceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: upsert resource service is required")
	}
	out, err := c.service.UpsertResource(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateBookingCommand struct {
	service MutatingService
}

func NewCreateBookingCommand(service MutatingService) *CreateBookingCommand {
	return &CreateBookingCommand{service: service}
}

func (c *CreateBookingCommand) Execute(ctx context.Context, msg CreateBookingMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: create booking service is required")
	}
	out, err := c.service.CreateBooking(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ConfirmPaymentCommand struct {
	service MutatingService
}

func NewConfirmPaymentCommand(service MutatingService) *ConfirmPaymentCommand {
	return &ConfirmPaymentCommand{service: service}
}

func (c *ConfirmPaymentCommand) Execute(ctx context.Context, msg ConfirmPaymentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: confirm payment service is required")
	}
	out, err := c.service.ConfirmPayment(ctx, msg.BookingID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CancelBookingCommand struct {
	service MutatingService
}

func NewCancelBookingCommand(service MutatingService) *CancelBookingCommand {
	return &CancelBookingCommand{service: service}
}

func (c *CancelBookingCommand) Execute(ctx context.Context, msg CancelBookingMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: cancel booking service is required")
	}
	out, err := c.service.CancelBooking(ctx, msg.BookingID, msg.Reason)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReapBookingsCommand struct {
	service MutatingService
	clock   core.Clock
}

func NewReapBookingsCommand(service MutatingService, clock core.Clock) *ReapBookingsCommand {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &ReapBookingsCommand{service: service, clock: clock}
}

func (c *ReapBookingsCommand) Execute(ctx context.Context, msg ReapBookingsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reap bookings service is required")
	}
	out, err := c.service.ReapExpiredBookings(ctx, c.clock.Now())
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
