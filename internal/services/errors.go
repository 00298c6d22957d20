// Package services defines the application logic above the repositories:
// the webhook flow, conversation history, conversation memory and channel
// credentials. This file centralizes service-level error values so handlers
// can map them to HTTP results consistently.
package services

import "errors"

var (
	// ErrTenantRequired is returned when an operation needs a tenant id and none was given.
	ErrTenantRequired = errors.New("tenant id is required")

	// ErrTenantNotFound indicates that the tenant does not exist.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrUserIDRequired is returned when an operation needs a user id and none was given.
	ErrUserIDRequired = errors.New("user id is required")

	// ErrInvalidCredential is returned when a credential registration payload
	// fails validation.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrCredentialNotFound indicates that the tenant has no credential by that name.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrSecretMismatch is returned when the webhook secret presented by the
	// platform does not match the tenant's configured secret.
	ErrSecretMismatch = errors.New("webhook secret mismatch")
)
