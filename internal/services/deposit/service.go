// Package deposit funds accounts from external cards. Card numbers never
// touch the database; they are exchanged for Stripe tokens and charged, and
// only the resulting charge feeds the ledger.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/charge"
	"github.com/stripe/stripe-go/v72/token"

	"cora/internal/idempotency"
	"cora/internal/services/ledger"
)

var (
	ErrInvalidAmount   = errors.New("deposit amount must be positive")
	ErrInvalidCard     = errors.New("invalid card number: failed validation check")
	ErrCardExpired     = errors.New("card is expired or has invalid expiry date")
	ErrDuplicateCharge = errors.New("deposit already processed")
)

type CardInput struct {
	CardNumber  string `json:"card_number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CVC         string `json:"cvc"`
}

type Request struct {
	AccountID      uint
	AmountCents    int64
	Currency       string
	Card           CardInput
	IdempotencyKey string
}

type Receipt struct {
	ChargeID    string `json:"charge_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	CardBrand   string `json:"card_brand"`
}

type Service struct {
	ledger *ledger.Service
	store  idempotency.Store
}

func NewService(ledgerSvc *ledger.Service, store idempotency.Store) *Service {
	if ledgerSvc == nil {
		panic("ledger service is required")
	}
	if store == nil {
		panic("idempotency store is required")
	}
	return &Service{ledger: ledgerSvc, store: store}
}

func (s *Service) Deposit(ctx context.Context, req Request) (*Receipt, error) {
	if req.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}

	// Client retries with the same key must not charge the card twice. The
	// key is only consumed once the charge and credit both landed, so a
	// retry after a failed attempt is not locked out. Stripe deduplicates
	// the charge itself via the same key, and the ledger deduplicates the
	// credit on the charge id.
	if req.IdempotencyKey != "" {
		seen, err := s.store.Seen(ctx, "deposit:"+req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if seen {
			return nil, ErrDuplicateCharge
		}
	}

	tok, brand, err := tokenizeCard(req.Card)
	if err != nil {
		return nil, err
	}

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	params := &stripe.ChargeParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if err := params.SetSource(tok); err != nil {
		return nil, fmt.Errorf("invalid charge source: %w", err)
	}
	ch, err := charge.New(params)
	if err != nil {
		log.Printf("stripe charge failed for account %d: %v", req.AccountID, err)
		return nil, fmt.Errorf("card charge failed: %w", err)
	}

	ledgerKey := "charge-" + ch.ID
	if err := s.ledger.Deposit(ctx, req.AccountID, req.AmountCents, ledgerKey); err != nil {
		// Charge went through but the credit did not. Surface loudly; the
		// charge id makes the credit replayable.
		log.Printf("charge %s succeeded but ledger credit failed: %v", ch.ID, err)
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}

	if req.IdempotencyKey != "" {
		if _, err := s.store.MarkIfFirst(ctx, "deposit:"+req.IdempotencyKey, idempotency.DefaultTTL); err != nil {
			// The deposit is applied; losing the marker only weakens
			// duplicate detection, and the downstream keys still dedupe.
			log.Printf("failed to record deposit idempotency key: %v", err)
		}
	}

	return &Receipt{
		ChargeID:    ch.ID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		CardBrand:   brand,
	}, nil
}

// tokenizeCard exchanges raw card details for a Stripe token. Test tokens
// (tok_*) pass through untouched.
func tokenizeCard(card CardInput) (string, string, error) {
	if strings.HasPrefix(card.CardNumber, "tok_") {
		brand := "Unknown"
		switch card.CardNumber {
		case "tok_visa", "tok_visa_debit":
			brand = "Visa"
		case "tok_mastercard":
			brand = "Mastercard"
		case "tok_amex":
			brand = "American Express"
		}
		return card.CardNumber, brand, nil
	}

	if !isValidCardNumber(card.CardNumber) {
		return "", "", ErrInvalidCard
	}
	if !isValidExpiry(card.ExpiryMonth, card.ExpiryYear) {
		return "", "", ErrCardExpired
	}

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	params := &stripe.TokenParams{
		Card: &stripe.CardParams{
			Number:   &card.CardNumber,
			ExpMonth: &card.ExpiryMonth,
			ExpYear:  &card.ExpiryYear,
			CVC:      &card.CVC,
		},
	}
	stripeToken, err := token.New(params)
	if err != nil {
		log.Printf("stripe tokenization error: %v", err)
		return "", "", fmt.Errorf("stripe tokenization failed: %w", err)
	}
	return stripeToken.ID, string(stripeToken.Card.Brand), nil
}

// Luhn check.
func isValidCardNumber(cardNumber string) bool {
	if cardNumber == "" {
		return false
	}
	var sum int
	shouldDouble := false
	for i := len(cardNumber) - 1; i >= 0; i-- {
		if cardNumber[i] < '0' || cardNumber[i] > '9' {
			return false
		}
		digit := int(cardNumber[i] - '0')
		if shouldDouble {
			digit = digit * 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		shouldDouble = !shouldDouble
	}
	return sum%10 == 0
}

func isValidExpiry(monthStr, yearStr string) bool {
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return false
	}
	currentYear, currentMonth, _ := time.Now().Date()
	if year < currentYear || (year == currentYear && month < int(currentMonth)) {
		return false
	}
	return true
}
