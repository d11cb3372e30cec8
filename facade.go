package tenancy

import (
	"fmt"

	tenancycommand "github.com/goliatone/go-tenancy/command"
)

type Commands struct {
	SubmitConfig      *tenancycommand.SubmitConfigCommand
	ApproveConfig     *tenancycommand.ApproveConfigCommand
	RejectConfig      *tenancycommand.RejectConfigCommand
	PublishConfig     *tenancycommand.PublishConfigCommand
	ToggleEntitlement *tenancycommand.ToggleEntitlementCommand
	UpsertResource    *tenancycommand.UpsertResourceCommand
	CreateBooking     *tenancycommand.CreateBookingCommand
	ConfirmPayment    *tenancycommand.ConfirmPaymentCommand
	CancelBooking     *tenancycommand.CancelBookingCommand
	ReapBookings      *tenancycommand.ReapBookingsCommand
}

// Facade bundles the command handlers around a single mutating service.
// Reads go straight through the service; only mutations ride the command bus.
type Facade struct {
	service  tenancycommand.MutatingService
	commands Commands
}

func NewFacade(service tenancycommand.MutatingService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("tenancy: mutating service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		SubmitConfig:      tenancycommand.NewSubmitConfigCommand(service),
		ApproveConfig:     tenancycommand.NewApproveConfigCommand(service),
		RejectConfig:      tenancycommand.NewRejectConfigCommand(service),
		PublishConfig:     tenancycommand.NewPublishConfigCommand(service),
		ToggleEntitlement: tenancycommand.NewToggleEntitlementCommand(service),
		UpsertResource:    tenancycommand.NewUpsertResourceCommand(service),
		CreateBooking:     tenancycommand.NewCreateBookingCommand(service),
		ConfirmPayment:    tenancycommand.NewConfirmPaymentCommand(service),
		CancelBooking:     tenancycommand.NewCancelBookingCommand(service),
		ReapBookings:      tenancycommand.NewReapBookingsCommand(service, nil),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() tenancycommand.MutatingService {
	if f == nil {
		return nil
	}
	return f.service
}
