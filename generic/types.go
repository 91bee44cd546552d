/*
Package generic provides the domain-agnostic core of the life planner.

PURPOSE:
  Holds the value types shared by every domain package: money amounts,
  calendar days, identifiers and the immutable financial record that both
  the routine-job reconciler and user actions append to.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity of money with a currency
  - FinancialRecord: An immutable ledger entry (income or expense)
  - Owner/Record IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Financial records are never modified after creation
  2. Precision: Uses decimal.Decimal, never float64, for money
  3. Type Safety: Owner and record IDs cannot be mixed up
  4. Idempotency: Every system-generated record carries an idempotency key

USAGE:
  rec := generic.FinancialRecord{
      OwnerID: "user-1",
      Type:    generic.RecordIncome,
      Amount:  generic.NewAmountFromInt(100000, generic.CurrencyIRR),
      Date:    generic.NewDay(2025, time.March, 21),
  }

SEE ALSO:
  - time.go: Day type
  - ledger.go: Record persistence with idempotency checks
  - errors.go: Sentinel errors
*/
package generic

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Money with currency
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

const (
	CurrencyIRR Currency = "IRR"
	CurrencyIRT Currency = "IRT" // toman, the unit most users type in
)

// DefaultCurrency is used when a record or job is created without one.
const DefaultCurrency = CurrencyIRR

var rialsPerToman = decimal.NewFromInt(10)

func (c Currency) Valid() bool {
	return c == CurrencyIRR || c == CurrencyIRT
}

// InRials converts a to IRR. Amounts already in IRR are returned unchanged.
func (a Amount) InRials() Amount {
	if a.Currency == CurrencyIRT {
		return Amount{Value: a.Value.Mul(rialsPerToman), Currency: CurrencyIRR}
	}
	return a
}

func NewAmountFromInt(value int64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromInt(value), Currency: currency}
}

// NewAmountFromDecimal wraps d. An empty currency means DefaultCurrency.
func NewAmountFromDecimal(d decimal.Decimal, currency Currency) Amount {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Amount{Value: d, Currency: currency}
}

// ParseAmount parses a decimal string. An empty currency means DefaultCurrency.
func ParseAmount(value string, currency Currency) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return Amount{}, err
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return Amount{Value: d, Currency: currency}, nil
}

func (a Amount) Zero() Amount               { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount        { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount        { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) Neg() Amount                { return Amount{Value: a.Value.Neg(), Currency: a.Currency} }
func (a Amount) IsZero() bool               { return a.Value.IsZero() }
func (a Amount) IsPositive() bool           { return a.Value.IsPositive() }
func (a Amount) IsNegative() bool           { return a.Value.IsNegative() }
func (a Amount) Equal(b Amount) bool        { return a.Value.Equal(b.Value) && a.Currency == b.Currency }
func (a Amount) GreaterThan(b Amount) bool  { return a.Value.GreaterThan(b.Value) }
func (a Amount) String() string             { return a.Value.String() + " " + string(a.Currency) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OwnerID string
type RecordID string

// =============================================================================
// FINANCIAL RECORD - Immutable ledger entry
// =============================================================================

type RecordType string

const (
	RecordIncome  RecordType = "income"
	RecordExpense RecordType = "expense"
)

func (t RecordType) Valid() bool {
	return t == RecordIncome || t == RecordExpense
}

// Well-known categories written by the system. Users may use any string.
const (
	CategoryRoutineJob = "routine_job"
	CategoryTaskReward = "task_reward"
)

// FinancialRecord is never mutated after it is appended.
// TaskID and RoutineJobID are optional back-references to the source.
type FinancialRecord struct {
	ID             RecordID
	OwnerID        OwnerID
	Type           RecordType
	Amount         Amount
	Description    string
	Category       string
	Date           Day
	TaskID         string
	RoutineJobID   string
	IdempotencyKey string
	CreatedAt      time.Time
}

// Validate checks the record invariants: known type, strictly positive amount
// in a supported currency, owner and date present.
func (r FinancialRecord) Validate() error {
	if r.OwnerID == "" {
		return &RecordError{Field: "owner_id", Reason: "required"}
	}
	if !r.Type.Valid() {
		return &RecordError{Field: "type", Reason: "must be income or expense"}
	}
	if !r.Amount.IsPositive() {
		return &RecordError{Field: "amount", Reason: "must be greater than zero"}
	}
	if !r.Amount.Currency.Valid() {
		return &RecordError{Field: "currency", Reason: "must be IRR or IRT"}
	}
	if r.Date.IsZero() {
		return &RecordError{Field: "date", Reason: "required"}
	}
	return nil
}

// Signed returns the amount as it affects the owner's net balance.
func (r FinancialRecord) Signed() Amount {
	if r.Type == RecordExpense {
		return r.Amount.Neg()
	}
	return r.Amount
}
