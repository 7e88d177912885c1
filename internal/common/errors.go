// Package common defines shared sentinel errors used across the diary
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository/store-level errors.
	// ErrorNotFound is returned when an id+owner scoped write matched zero
	// rows: the record either does not exist or belongs to another owner.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
