// Package classify maps transport status codes and server-supplied messages
// onto the closed admin.Category taxonomy.
//
// The mapping is total and pure: every (status, message) pair yields a
// classification, identical inputs yield identical outputs, and nothing here
// touches shared state.
package classify

import (
	"net/http"

	admin "github.com/pressroomhq/admin-go"
)

// byMessage is the curated table of domain-specific server messages. An
// exact match here takes precedence over the generic status table.
var byMessage = map[string]admin.Category{
	"Invalid credentials":       admin.CategoryInvalidCredentials,
	"Invalid email or password": admin.CategoryInvalidCredentials,
	// An expired numeric code is retryable via resend; only an expired
	// temp token ends the challenge.
	"Invalid OTP":               admin.CategoryInvalidPasscode,
	"OTP has expired":           admin.CategoryInvalidPasscode,
	"OTP already used":          admin.CategoryInvalidPasscode,
	"Temp auth token expired":   admin.CategoryChallengeExpired,
	"Too many attempts":         admin.CategoryTooManyAttempts,
	"Too many failed attempts":  admin.CategoryTooManyAttempts,
	"Site not found":            admin.CategoryTenantNotFound,
}

// byStatus is the generic status-code table, consulted only when the server
// message is absent or unrecognized.
var byStatus = map[int]admin.Category{
	http.StatusBadRequest:          admin.CategoryValidationFailed,
	http.StatusUnauthorized:        admin.CategoryUnauthorized,
	http.StatusForbidden:           admin.CategoryForbidden,
	http.StatusNotFound:            admin.CategoryNotFound,
	http.StatusRequestTimeout:      admin.CategoryNetwork,
	http.StatusConflict:            admin.CategoryValidationFailed,
	http.StatusUnprocessableEntity: admin.CategoryValidationFailed,
	http.StatusTooManyRequests:     admin.CategoryRateLimited,
	http.StatusInternalServerError: admin.CategoryServerError,
	http.StatusNotImplemented:      admin.CategoryServerError,
	http.StatusBadGateway:          admin.CategoryGatewayError,
	http.StatusServiceUnavailable:  admin.CategoryGatewayError,
	http.StatusGatewayTimeout:      admin.CategoryGatewayError,
}

// Map classifies a transport outcome. A status of 0 means no response
// reached the client at all. Unmapped pairs fall back to
// admin.CategoryUnexpected carrying the numeric status for diagnostics.
func Map(status int, message string) *admin.Classification {
	if cat, ok := byMessage[message]; ok {
		return &admin.Classification{Category: cat, Message: message, Status: status}
	}
	if status == 0 {
		return &admin.Classification{Category: admin.CategoryNetwork, Message: message}
	}
	if cat, ok := byStatus[status]; ok {
		return &admin.Classification{Category: cat, Message: message, Status: status}
	}
	return &admin.Classification{Category: admin.CategoryUnexpected, Message: message, Status: status}
}

// NetworkError classifies a transport-level failure where no response was
// received, preserving the underlying error text.
func NetworkError(err error) *admin.Classification {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &admin.Classification{Category: admin.CategoryNetwork, Message: msg}
}
