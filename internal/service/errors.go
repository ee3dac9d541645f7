package service

import (
	"context"
	"errors"
	"net"

	"pitchside/internal/billing"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrPlanNotFound        = errors.New("plan not found")
	ErrPlanNotPurchasable  = errors.New("plan is not purchasable")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrCodeInvalid         = errors.New("access code is invalid or expired")
	ErrCodeAlreadyRedeemed = errors.New("access code already redeemed")
	ErrNoBillingCustomer   = errors.New("user has no billing customer")
	ErrAccessDenied        = errors.New("access denied")
	ErrUnsupportedMedia    = errors.New("unsupported media type")
)

// IsRetryable reports whether err is a transient failure the caller should
// retry: the billing provider being unavailable, or the database being
// unreachable or timing out.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, billing.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
