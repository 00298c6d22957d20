// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// domain codes name the operation that failed. Every error response carries
// an HTTP status and one of these codes:
//
//	{
//	  "request_id": "1f0c2a9b",
//	  "code": "tenant_required",
//	  "message": "X-Tenant-ID header is required"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeTenantRequired     = "tenant_required"
	ErrCodeTenantNotFound     = "tenant_not_found"
	ErrCodeInvalidCredential  = "invalid_credential"
	ErrCodeRegisterFailed     = "register_failed"
	ErrCodeStatusFailed       = "status_failed"
	ErrCodeCredentialNotFound = "credential_not_found"
	ErrCodeDeactivateFailed   = "deactivate_failed"
	ErrCodeListFailed         = "list_failed"
	ErrCodeMemoryFailed       = "memory_failed"
)
