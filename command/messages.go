package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-tenancy/core"
)

const (
	TypeSubmitConfig      = "tenancy.command.config.submit"
	TypeApproveConfig     = "tenancy.command.config.approve"
	TypeRejectConfig      = "tenancy.command.config.reject"
	TypePublishConfig     = "tenancy.command.config.publish"
	TypeToggleEntitlement = "tenancy.command.entitlement.toggle"
	TypeUpsertResource    = "tenancy.command.resource.upsert"
	TypeCreateBooking     = "tenancy.command.booking.create"
	TypeConfirmPayment    = "tenancy.command.booking.confirm_payment"
	TypeCancelBooking     = "tenancy.command.booking.cancel"
	TypeReapBookings      = "tenancy.command.booking.reap"
)

type SubmitConfigMessage struct {
	Input core.SubmitConfigInput
}

func (SubmitConfigMessage) Type() string { return TypeSubmitConfig }

func (m SubmitConfigMessage) Validate() error {
	if strings.TrimSpace(m.Input.TenantID) == "" {
		return fmt.Errorf("command: tenant id is required")
	}
	if strings.TrimSpace(m.Input.ModuleKey) == "" {
		return fmt.Errorf("command: module key is required")
	}
	if len(m.Input.ConfigJSON) == 0 {
		return fmt.Errorf("command: config document is required")
	}
	return nil
}

type ApproveConfigMessage struct {
	Input core.ApproveConfigInput
}

func (ApproveConfigMessage) Type() string { return TypeApproveConfig }

func (m ApproveConfigMessage) Validate() error {
	if strings.TrimSpace(m.Input.ID) == "" {
		return fmt.Errorf("command: config id is required")
	}
	if m.Input.ExpectedVersion <= 0 {
		return fmt.Errorf("command: expected version must be positive")
	}
	return nil
}

type RejectConfigMessage struct {
	Input core.RejectConfigInput
}

func (RejectConfigMessage) Type() string { return TypeRejectConfig }

func (m RejectConfigMessage) Validate() error {
	if strings.TrimSpace(m.Input.ID) == "" {
		return fmt.Errorf("command: config id is required")
	}
	if m.Input.ExpectedVersion <= 0 {
		return fmt.Errorf("command: expected version must be positive")
	}
	if strings.TrimSpace(m.Input.ReviewNote) == "" {
		return fmt.Errorf("command: review note is required")
	}
	return nil
}

type PublishConfigMessage struct {
	Input core.PublishConfigInput
}

func (PublishConfigMessage) Type() string { return TypePublishConfig }

func (m PublishConfigMessage) Validate() error {
	if strings.TrimSpace(m.Input.ID) == "" {
		return fmt.Errorf("command: config id is required")
	}
	if m.Input.ExpectedVersion <= 0 {
		return fmt.Errorf("command: expected version must be positive")
	}
	return nil
}

type ToggleEntitlementMessage struct {
	Input core.ToggleEntitlementInput
}

func (ToggleEntitlementMessage) Type() string { return TypeToggleEntitlement }

func (m ToggleEntitlementMessage) Validate() error {
	if strings.TrimSpace(m.Input.TenantID) == "" {
		return fmt.Errorf("command: tenant id is required")
	}
	if strings.TrimSpace(m.Input.ModuleKey) == "" {
		return fmt.Errorf("command: module key is required")
	}
	switch m.Input.Status {
	case core.EntitlementStatusEnabled, core.EntitlementStatusDisabled:
		return nil
	default:
		return fmt.Errorf("command: entitlement status %q is not valid", m.Input.Status)
	}
}

type UpsertResourceMessage struct {
	Input core.UpsertResourceInput
}

func (UpsertResourceMessage) Type() string { return TypeUpsertResource }

func (m UpsertResourceMessage) Validate() error {
	if strings.TrimSpace(m.Input.TenantID) == "" {
		return fmt.Errorf("command: tenant id is required")
	}
	if strings.TrimSpace(m.Input.Name) == "" {
		return fmt.Errorf("command: resource name is required")
	}
	return nil
}

type CreateBookingMessage struct {
	Input core.CreateBookingInput
}

func (CreateBookingMessage) Type() string { return TypeCreateBooking }

func (m CreateBookingMessage) Validate() error {
	if strings.TrimSpace(m.Input.ResourceID) == "" {
		return fmt.Errorf("command: resource id is required")
	}
	if strings.TrimSpace(m.Input.TenantID) == "" {
		return fmt.Errorf("command: tenant id is required")
	}
	if strings.TrimSpace(m.Input.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if m.Input.Start.IsZero() || m.Input.End.IsZero() {
		return fmt.Errorf("command: booking interval is required")
	}
	return nil
}

type ConfirmPaymentMessage struct {
	BookingID string
}

func (ConfirmPaymentMessage) Type() string { return TypeConfirmPayment }

func (m ConfirmPaymentMessage) Validate() error {
	if strings.TrimSpace(m.BookingID) == "" {
		return fmt.Errorf("command: booking id is required")
	}
	return nil
}

type CancelBookingMessage struct {
	BookingID string
	Reason    string
}

func (CancelBookingMessage) Type() string { return TypeCancelBooking }

func (m CancelBookingMessage) Validate() error {
	if strings.TrimSpace(m.BookingID) == "" {
		return fmt.Errorf("command: booking id is required")
	}
	return nil
}

type ReapBookingsMessage struct{}

func (ReapBookingsMessage) Type() string { return TypeReapBookings }

func (ReapBookingsMessage) Validate() error { return nil }
