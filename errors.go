package admin

import (
	"errors"
	"fmt"
)

// Category is the stable, closed set of failure kinds every transport or
// server error is mapped into before it reaches a caller.
type Category string

const (
	CategoryNetwork            Category = "network"
	CategoryInvalidCredentials Category = "invalid_credentials"
	CategoryInvalidPasscode    Category = "invalid_passcode"
	CategoryChallengeExpired   Category = "challenge_expired"
	CategoryTooManyAttempts    Category = "too_many_attempts"
	CategoryTenantNotFound     Category = "tenant_not_found"
	CategoryUnauthorized       Category = "unauthorized"
	CategoryForbidden          Category = "forbidden"
	CategoryNotFound           Category = "not_found"
	CategoryValidationFailed   Category = "validation_failed"
	CategoryRateLimited        Category = "rate_limited"
	CategoryServerError        Category = "server_error"
	CategoryGatewayError       Category = "gateway_error"
	CategoryUnexpected         Category = "unexpected"
)

// Classification is the result of mapping a raw failure into a Category.
// It carries the server message when one was supplied and the transport
// status code for diagnostics. Derived, never stored.
type Classification struct {
	Category Category
	Message  string
	Status   int
}

// Error implements the error interface so classifications flow through
// ordinary error returns.
func (c *Classification) Error() string {
	if c.Message != "" {
		return fmt.Sprintf("admin: %s (%s)", c.Message, c.Category)
	}
	return fmt.Sprintf("admin: %s (status %d)", c.Category, c.Status)
}

// CategoryOf extracts the classification category from err, unwrapping as
// needed. Unclassified errors report CategoryUnexpected.
func CategoryOf(err error) Category {
	var c *Classification
	if errors.As(err, &c) {
		return c.Category
	}
	return CategoryUnexpected
}

// ClassificationOf extracts the full classification from err, or nil when
// err carries none.
func ClassificationOf(err error) *Classification {
	var c *Classification
	if errors.As(err, &c) {
		return c
	}
	return nil
}
