package core

import (
	"fmt"
	"strings"
	"time"
)

type BookingConfig struct {
	// PaymentTTL is how long a PENDING booking may wait for payment before
	// the reaper cancels it.
	PaymentTTL      time.Duration `koanf:"payment_ttl" mapstructure:"payment_ttl"`
	ReapInterval    time.Duration `koanf:"reap_interval" mapstructure:"reap_interval"`
	CodeLength      int           `koanf:"code_length" mapstructure:"code_length"`
	CodeMaxAttempts int           `koanf:"code_max_attempts" mapstructure:"code_max_attempts"`
	SlotLockTTL     time.Duration `koanf:"slot_lock_ttl" mapstructure:"slot_lock_ttl"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Booking     BookingConfig `koanf:"booking" mapstructure:"booking"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "tenancy",
		Booking: BookingConfig{
			PaymentTTL:      15 * time.Minute,
			ReapInterval:    30 * time.Second,
			CodeLength:      8,
			CodeMaxAttempts: 5,
			SlotLockTTL:     10 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Booking.PaymentTTL < 0 {
		return fmt.Errorf("core: booking.payment_ttl must not be negative")
	}
	if c.Booking.ReapInterval < 0 {
		return fmt.Errorf("core: booking.reap_interval must not be negative")
	}
	if c.Booking.CodeLength < 0 {
		return fmt.Errorf("core: booking.code_length must not be negative")
	}
	if c.Booking.CodeMaxAttempts < 0 {
		return fmt.Errorf("core: booking.code_max_attempts must not be negative")
	}
	return nil
}
