package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// IntentRequest captures the information required to open a payment intent
// with a collection provider.
type IntentRequest struct {
	InvoiceNumber string
	Amount        decimal.Decimal
	Currency      string
	ExpiresAtSec  int
}

// IntentResponse is the minimal information returned when creating an intent.
type IntentResponse struct {
	Provider    string
	Token       string
	RedirectURL string
	ExpiresAt   int64
}

// Provider abstracts the upstream collection provider.
type Provider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)
}

// CheckoutLink synthesises deterministic hosted-checkout intents without a
// network call, enough to drive the rest of the flow in tests and sandboxes.
type CheckoutLink struct {
	BaseURL string
	Sandbox bool
}

// CreateIntent builds a checkout token and redirect URL for the invoice.
func (c CheckoutLink) CreateIntent(_ context.Context, req IntentRequest) (IntentResponse, error) {
	if strings.TrimSpace(req.InvoiceNumber) == "" {
		return IntentResponse{}, errors.New("invoice number is required")
	}
	if !req.Amount.IsPositive() {
		return IntentResponse{}, errors.New("amount must be positive")
	}
	token := fmt.Sprintf("PAY-%s", req.InvoiceNumber)
	expiresAt := time.Now().Add(time.Duration(req.ExpiresAtSec) * time.Second)
	return IntentResponse{
		Provider:    "checkout-link",
		Token:       token,
		RedirectURL: fmt.Sprintf("%s/pay/%s", strings.TrimRight(c.host(), "/"), token),
		ExpiresAt:   expiresAt.Unix(),
	}, nil
}

func (c CheckoutLink) host() string {
	host := strings.TrimSpace(c.BaseURL)
	if host == "" {
		if c.Sandbox {
			return "https://sandbox.pay.example.com"
		}
		return "https://pay.example.com"
	}
	return host
}
