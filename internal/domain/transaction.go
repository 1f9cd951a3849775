package domain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transaction kinds
const (
	KindDebit  uint8 = 1 // Money in
	KindCredit uint8 = 2 // Money out
)

// Transaction kind names used on the API
const (
	KindNameDebit  = "DEBIT"
	KindNameCredit = "CREDIT"
)

// AccountSize is the maximum length of an account reference.
const AccountSize = 32

var (
	ErrInvalidAccount  = errors.New("account must be 1 to 32 bytes")
	ErrInvalidCurrency = errors.New("currency must be a 3 letter code")
	ErrInvalidKind     = errors.New("kind must be DEBIT or CREDIT")
	ErrInvalidAmount   = errors.New("amount must be positive")
)

// Transaction is the unit queued and committed by the service.
//
// Every field has a fixed size so a transaction is stored as a flat binary
// record; do not add strings, slices or pointers.
type Transaction struct {
	ID        uuid.UUID
	Account   [AccountSize]byte
	Amount    int64 // minor units
	Currency  [3]byte
	Kind      uint8
	CreatedAt int64 // unix nanoseconds
}

// AccountString returns the account reference without padding.
func (t Transaction) AccountString() string {
	return string(bytes.TrimRight(t.Account[:], "\x00"))
}

// CurrencyString returns the currency code.
func (t Transaction) CurrencyString() string {
	return string(t.Currency[:])
}

// KindString returns the API name of the kind.
func (t Transaction) KindString() string {
	return KindName(t.Kind)
}

// CreatedTime returns CreatedAt as time.Time.
func (t Transaction) CreatedTime() time.Time {
	return time.Unix(0, t.CreatedAt).UTC()
}

// Validate checks the transaction fields.
func (t Transaction) Validate() error {
	if t.Account[0] == 0 {
		return ErrInvalidAccount
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !IsValidKind(t.Kind) {
		return ErrInvalidKind
	}
	for _, c := range t.Currency {
		if c < 'A' || c > 'Z' {
			return ErrInvalidCurrency
		}
	}
	return nil
}

// IsValidKind checks if the transaction kind is known
func IsValidKind(kind uint8) bool {
	return kind == KindDebit || kind == KindCredit
}

// KindName converts a kind to its API name
func KindName(kind uint8) string {
	switch kind {
	case KindDebit:
		return KindNameDebit
	case KindCredit:
		return KindNameCredit
	default:
		return fmt.Sprintf("UNKNOWN(%d)", kind)
	}
}

// ParseKind converts an API name to a kind
func ParseKind(name string) (uint8, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case KindNameDebit:
		return KindDebit, nil
	case KindNameCredit:
		return KindCredit, nil
	default:
		return 0, ErrInvalidKind
	}
}

// CreateTransactionRequest is the enqueue request body.
type CreateTransactionRequest struct {
	ID       string `json:"id"`
	Account  string `json:"account" binding:"required"`
	Amount   int64  `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required"`
	Kind     string `json:"kind" binding:"required"`
}

// ToTransaction validates the request and builds a transaction. A missing ID
// is generated.
func (r CreateTransactionRequest) ToTransaction(now time.Time) (Transaction, error) {
	var t Transaction

	if r.ID == "" {
		t.ID = uuid.New()
	} else {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return t, fmt.Errorf("invalid id: %w", err)
		}
		t.ID = id
	}

	account := strings.TrimSpace(r.Account)
	if account == "" || len(account) > AccountSize || strings.ContainsRune(account, 0) {
		return t, ErrInvalidAccount
	}
	copy(t.Account[:], account)

	currency := strings.ToUpper(strings.TrimSpace(r.Currency))
	if len(currency) != len(t.Currency) {
		return t, ErrInvalidCurrency
	}
	copy(t.Currency[:], currency)

	kind, err := ParseKind(r.Kind)
	if err != nil {
		return t, err
	}
	t.Kind = kind
	t.Amount = r.Amount
	t.CreatedAt = now.UnixNano()

	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// TransactionResponse is the JSON view of a transaction.
type TransactionResponse struct {
	ID        string    `json:"id"`
	Account   string    `json:"account"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTransactionResponse builds the JSON view of t.
func NewTransactionResponse(t Transaction) TransactionResponse {
	return TransactionResponse{
		ID:        t.ID.String(),
		Account:   t.AccountString(),
		Amount:    t.Amount,
		Currency:  t.CurrencyString(),
		Kind:      t.KindString(),
		CreatedAt: t.CreatedTime(),
	}
}

// CommittedTransaction is a transaction row as stored by a backend.
type CommittedTransaction struct {
	ID          string    `json:"id" db:"id"`
	Account     string    `json:"account" db:"account"`
	Amount      int64     `json:"amount" db:"amount"`
	Currency    string    `json:"currency" db:"currency"`
	Kind        string    `json:"kind" db:"kind"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	CommittedAt time.Time `json:"committed_at" db:"committed_at"`
}

// NewCommittedTransaction builds the stored form of t.
func NewCommittedTransaction(t Transaction, committedAt time.Time) CommittedTransaction {
	return CommittedTransaction{
		ID:          t.ID.String(),
		Account:     t.AccountString(),
		Amount:      t.Amount,
		Currency:    t.CurrencyString(),
		Kind:        t.KindString(),
		CreatedAt:   t.CreatedTime(),
		CommittedAt: committedAt.UTC(),
	}
}

// CommitRepository applies transactions to a backend. Commit may be called
// more than once for the same transaction and must not apply it twice.
type CommitRepository interface {
	Commit(ctx context.Context, transaction Transaction) error
}
