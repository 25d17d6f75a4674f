package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// Signup-code errors
	ErrInvalidCodeFormat       = errors.New("invalid signup code format")
	ErrCodeNotRedeemable       = errors.New("signup code not redeemable")
	ErrDuplicateCode           = errors.New("signup code already exists")
	ErrCodeNotFound            = errors.New("signup code not found")
	ErrCodeGenerationExhausted = errors.New("signup code generation attempts exhausted")
	ErrRedemptionUnavailable   = errors.New("redemption temporarily unavailable")

	// Infrastructure errors
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
