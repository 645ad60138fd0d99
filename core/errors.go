package core

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorCodeValidation       = "ONBOARDING_VALIDATION"
	ErrorCodeAuthRequired     = "ONBOARDING_AUTH_REQUIRED"
	ErrorCodeForbidden        = "ONBOARDING_FORBIDDEN"
	ErrorCodeNotFound         = "ONBOARDING_NOT_FOUND"
	ErrorCodeConflict         = "ONBOARDING_CONFLICT"
	ErrorCodeAlreadyProcessed = "ONBOARDING_ALREADY_PROCESSED"
	ErrorCodeIntegrity        = "ONBOARDING_INTEGRITY"
	ErrorCodeTxFailure        = "ONBOARDING_TX_FAILURE"
	ErrorCodeInternal         = "ONBOARDING_INTERNAL_ERROR"
)

// Sentinels raised by stores and matched by the mapper. Store
// implementations wrap these so the orchestrator never inspects driver
// errors directly.
var (
	ErrNotFound         = errors.New("core: record not found")
	ErrConflict         = errors.New("core: unique constraint conflict")
	ErrAlreadyProcessed = errors.New("core: join request already processed")
	ErrIntegrity        = errors.New("core: ciphertext integrity failure")
	ErrTxFailure        = errors.New("core: transaction failure")
)

func onboardingErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		return newOnboardingError(err.Error(), goerrors.CategoryConflict, ErrorCodeAlreadyProcessed)
	case errors.Is(err, ErrConflict):
		return newOnboardingError(err.Error(), goerrors.CategoryConflict, ErrorCodeConflict)
	case errors.Is(err, ErrLastConnectionLink):
		return newOnboardingError(err.Error(), goerrors.CategoryConflict, ErrorCodeConflict)
	case errors.Is(err, ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return newOnboardingError(err.Error(), goerrors.CategoryNotFound, ErrorCodeNotFound)
	case errors.Is(err, ErrIntegrity):
		return newOnboardingError(err.Error(), goerrors.CategoryInternal, ErrorCodeIntegrity)
	case errors.Is(err, ErrTxFailure):
		return newOnboardingError(err.Error(), goerrors.CategoryInternal, ErrorCodeTxFailure)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "authentication required"):
		return newOnboardingError(err.Error(), goerrors.CategoryAuth, ErrorCodeAuthRequired)
	case strings.Contains(msg, "admin"), strings.Contains(msg, "forbidden"):
		return newOnboardingError(err.Error(), goerrors.CategoryAuthz, ErrorCodeForbidden)
	case strings.Contains(msg, "integrity"), strings.Contains(msg, "security:"):
		return newOnboardingError(err.Error(), goerrors.CategoryInternal, ErrorCodeIntegrity)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newOnboardingError(err.Error(), goerrors.CategoryBadInput, ErrorCodeValidation)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newOnboardingError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = onboardingHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorCodeValidation
	case goerrors.CategoryNotFound:
		return ErrorCodeNotFound
	case goerrors.CategoryAuth:
		return ErrorCodeAuthRequired
	case goerrors.CategoryAuthz:
		return ErrorCodeForbidden
	case goerrors.CategoryConflict:
		return ErrorCodeConflict
	default:
		return ErrorCodeInternal
	}
}

func onboardingHTTPStatus(category goerrors.Category) int {
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

// IsConflict reports whether err maps to the conflict taxonomy, which is the
// retry signal after a lost creation race.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryConflict && richErr.TextCode != ErrorCodeAlreadyProcessed
	}
	return false
}
