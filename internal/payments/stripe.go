package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"marketplace/internal/logger"
)

const (
	DefaultAccountType    = "express"
	DefaultPayoutInterval = "manual"
)

var ErrNoAccountID = errors.New("payment processor returned no account id")

// AccountRequest describes a payout account for a new provider.
type AccountRequest struct {
	Email          string
	Country        string
	Type           string
	PayoutInterval string
}

// Accounts creates and removes payout accounts.
type Accounts interface {
	CreateAccount(ctx context.Context, req AccountRequest) (string, error)
	DeleteAccount(ctx context.Context, accountID string) error
}

type StripeAccounts struct {
	sc  *client.API
	log *slog.Logger
}

// NewStripeAccounts builds the Stripe-backed Accounts. backends may be nil to use api.stripe.com.
func NewStripeAccounts(secretKey string, backends *stripe.Backends, log *slog.Logger) *StripeAccounts {
	if log == nil {
		log = logger.Discard()
	}
	return &StripeAccounts{sc: client.New(secretKey, backends), log: log}
}

func (s *StripeAccounts) CreateAccount(ctx context.Context, req AccountRequest) (string, error) {
	if req.Type == "" {
		req.Type = DefaultAccountType
	}
	if req.PayoutInterval == "" {
		req.PayoutInterval = DefaultPayoutInterval
	}

	params := &stripe.AccountParams{
		Type:    stripe.String(req.Type),
		Country: stripe.String(req.Country),
		Email:   stripe.String(req.Email),
		Settings: &stripe.AccountSettingsParams{
			Payouts: &stripe.AccountSettingsPayoutsParams{
				Schedule: &stripe.AccountSettingsPayoutsScheduleParams{
					Interval: stripe.String(req.PayoutInterval),
				},
			},
		},
	}
	params.Context = ctx

	acct, err := s.sc.Accounts.New(params)
	if err != nil {
		return "", fmt.Errorf("create payout account: %w", err)
	}
	if acct == nil || acct.ID == "" {
		return "", ErrNoAccountID
	}

	s.log.Info("payout account created", slog.String("account_id", acct.ID), slog.String("country", req.Country))
	return acct.ID, nil
}

func (s *StripeAccounts) DeleteAccount(ctx context.Context, accountID string) error {
	params := &stripe.AccountParams{}
	params.Context = ctx
	if _, err := s.sc.Accounts.Del(accountID, params); err != nil {
		return fmt.Errorf("delete payout account %s: %w", accountID, err)
	}
	s.log.Info("payout account deleted", slog.String("account_id", accountID))
	return nil
}
