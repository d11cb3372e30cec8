package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TenancyErrorValidation        = "TENANCY_VALIDATION_FAILED"
	TenancyErrorVersionConflict   = "TENANCY_VERSION_CONFLICT"
	TenancyErrorInvalidTransition = "TENANCY_INVALID_TRANSITION"
	TenancyErrorNotEntitled       = "TENANCY_NOT_ENTITLED"
	TenancyErrorExpired           = "TENANCY_ENTITLEMENT_EXPIRED"
	TenancyErrorSlotMisaligned    = "TENANCY_SLOT_MISALIGNED"
	TenancyErrorOutOfWindow       = "TENANCY_OUT_OF_WINDOW"
	TenancyErrorBookingConflict   = "TENANCY_BOOKING_CONFLICT"
	TenancyErrorNotFound          = "TENANCY_NOT_FOUND"
	TenancyErrorInternal          = "TENANCY_INTERNAL_ERROR"
)

var (
	ErrValidation         = errors.New("core: config validation failed")
	ErrVersionConflict    = errors.New("core: version conflict")
	ErrNotEntitled        = errors.New("core: tenant not entitled to module")
	ErrEntitlementExpired = errors.New("core: entitlement expired")
	ErrSlotMisaligned     = errors.New("core: slot start misaligned")
	ErrOutOfWindow        = errors.New("core: slot outside booking window")
	ErrBookingConflict    = errors.New("core: booking conflict")
	ErrSlotLocked         = errors.New("core: slot lock already held")
)

func tenancyErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureTenancyErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrSchemaNotRegistered):
		return wrapTenancyError(err, goerrors.CategoryValidation, TenancyErrorValidation)
	case errors.Is(err, ErrVersionConflict):
		return wrapTenancyError(err, goerrors.CategoryConflict, TenancyErrorVersionConflict)
	case errors.Is(err, ErrInvalidConfigStatusTransition),
		errors.Is(err, ErrInvalidBookingStatusTransition):
		return wrapTenancyError(err, goerrors.CategoryConflict, TenancyErrorInvalidTransition)
	case errors.Is(err, ErrNotEntitled):
		return wrapTenancyError(err, goerrors.CategoryAuthz, TenancyErrorNotEntitled)
	case errors.Is(err, ErrEntitlementExpired):
		return wrapTenancyError(err, goerrors.CategoryAuthz, TenancyErrorExpired)
	case errors.Is(err, ErrSlotMisaligned):
		return wrapTenancyError(err, goerrors.CategoryBadInput, TenancyErrorSlotMisaligned)
	case errors.Is(err, ErrOutOfWindow):
		return wrapTenancyError(err, goerrors.CategoryBadInput, TenancyErrorOutOfWindow)
	case errors.Is(err, ErrBookingConflict), errors.Is(err, ErrSlotLocked):
		return wrapTenancyError(err, goerrors.CategoryConflict, TenancyErrorBookingConflict)
	case errors.Is(err, ErrConfigNotFound),
		errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrResourceNotFound),
		errors.Is(err, ErrNoPublishedConfig):
		return wrapTenancyError(err, goerrors.CategoryNotFound, TenancyErrorNotFound)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureTenancyErrorEnvelope(mapped)
}

// wrapTenancyError keeps the sentinel reachable through errors.Is while
// attaching the category and text code the envelope carries over the wire.
func wrapTenancyError(err error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureTenancyErrorEnvelope(
		goerrors.Wrap(err, category, err.Error()).
			WithTextCode(textCode),
	)
}

func ensureTenancyErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = tenancyHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTenancyTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTenancyTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return TenancyErrorValidation
	case goerrors.CategoryNotFound:
		return TenancyErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return TenancyErrorNotEntitled
	case goerrors.CategoryConflict:
		return TenancyErrorBookingConflict
	default:
		return TenancyErrorInternal
	}
}

func tenancyHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
