// Package gateway talks to the external payment processor: it opens charges,
// requests refunds, polls status and verifies signed callbacks.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"campusnest/internal/domain"
)

var (
	// ErrTimeout means the request may or may not have reached the processor.
	ErrTimeout          = errors.New("gateway timeout")
	ErrUnavailable      = errors.New("gateway unavailable")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformed        = errors.New("malformed gateway message")
)

type ChargeRequest struct {
	Reference    string
	Amount       int64
	Description  string
	PayerContact string
	// Booking is echoed back in the callback as Shp_booking.
	Booking string
}

type ChargeResult struct {
	Reference  string
	PaymentURL string
	Status     domain.GatewayStatus
}

type RefundRequest struct {
	Reference         string
	OriginalReference string
	Amount            int64
	Reason            string
}

type RefundResult struct {
	Reference string
	Status    domain.GatewayStatus
}

type StatusResult struct {
	Reference string
	Status    domain.GatewayStatus
	Amount    int64
	Reason    string
}

type Client interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	Status(ctx context.Context, reference string) (*StatusResult, error)
}

// FormatAmount renders whole currency units the way the processor expects.
func FormatAmount(amount int64) string {
	return strconv.FormatInt(amount, 10) + ".00"
}

// ParseAmount accepts "105000", "105000.00" or "105000.000000". Fractions of a
// unit are rejected.
func ParseAmount(s string) (int64, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return 0, fmt.Errorf("%w: amount %q", ErrMalformed, s)
	}
	if !r.IsInt() || !r.Num().IsInt64() {
		return 0, fmt.Errorf("%w: amount %q is not whole units", ErrMalformed, s)
	}
	return r.Num().Int64(), nil
}

func parseStatus(s string) (domain.GatewayStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "success", "succeeded", "paid", "ok":
		return domain.GatewaySucceeded, nil
	case "fail", "failed", "declined", "cancelled":
		return domain.GatewayFailed, nil
	case "pending", "processing":
		return domain.GatewayPending, nil
	case "created", "new":
		return domain.GatewayCreated, nil
	}
	return "", fmt.Errorf("%w: status %q", ErrMalformed, s)
}
