package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SubmitConfigMessage]      = (*SubmitConfigCommand)(nil)
	_ gocmd.Commander[ApproveConfigMessage]     = (*ApproveConfigCommand)(nil)
	_ gocmd.Commander[RejectConfigMessage]      = (*RejectConfigCommand)(nil)
	_ gocmd.Commander[PublishConfigMessage]     = (*PublishConfigCommand)(nil)
	_ gocmd.Commander[ToggleEntitlementMessage] = (*ToggleEntitlementCommand)(nil)
	_ gocmd.Commander[UpsertResourceMessage]    = (*UpsertResourceCommand)(nil)
	_ gocmd.Commander[CreateBookingMessage]     = (*CreateBookingCommand)(nil)
	_ gocmd.Commander[ConfirmPaymentMessage]    = (*ConfirmPaymentCommand)(nil)
	_ gocmd.Commander[CancelBookingMessage]     = (*CancelBookingCommand)(nil)
	_ gocmd.Commander[ReapBookingsMessage]      = (*ReapBookingsCommand)(nil)
)
