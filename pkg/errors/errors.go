package aixos_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
)

// Gateway boundary errors. Every failure coming back from the platform is
// folded into one of these before it reaches a handler or a screen.
var (
	ErrFetchFailed        = errors.New("historical fetch failed")
	ErrSendFailed         = errors.New("message send failed")
	ErrSubscriptionFailed = errors.New("change feed subscription failed")
	ErrAuthExpired        = errors.New("session expired")
	ErrDispatchFailed     = errors.New("relay dispatch failed")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
