/*
ledger.go - Append-only financial record log

PURPOSE:
  The Ledger is the immutable source of truth for an owner's money flows.
  Routine-job payouts, task rewards and manual transactions are all
  recorded here. Totals are always computed by replaying records; there is
  no separate "balance" column that can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. VALID: amount > 0, type is income or expense.
  3. IDEMPOTENT: Same idempotency key = same record (no duplicates).

SEE ALSO:
  - store.go: Low-level persistence interface
  - routine/reconciler.go: Appends payout records
*/
package generic

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store RecordStore
	Now   func() time.Time
}

func NewLedger(store RecordStore) *Ledger {
	return &Ledger{Store: store, Now: time.Now}
}

// Append validates rec, fills ID/CreatedAt/currency defaults and persists it.
// Returns the stored record.
func (l *Ledger) Append(ctx context.Context, rec FinancialRecord) (FinancialRecord, error) {
	if rec.Amount.Currency == "" {
		rec.Amount.Currency = DefaultCurrency
	}
	if err := rec.Validate(); err != nil {
		return FinancialRecord{}, err
	}
	if rec.IdempotencyKey != "" {
		exists, err := l.Store.RecordExists(ctx, rec.IdempotencyKey)
		if err != nil {
			return FinancialRecord{}, err
		}
		if exists {
			return FinancialRecord{}, ErrDuplicateIdempotencyKey
		}
	}
	if rec.ID == "" {
		rec.ID = RecordID(uuid.NewString())
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.Now().UTC()
	}
	if err := l.Store.AppendRecord(ctx, rec); err != nil {
		return FinancialRecord{}, err
	}
	return rec, nil
}

func (l *Ledger) Records(ctx context.Context, filter RecordFilter) ([]FinancialRecord, error) {
	return l.Store.ListRecords(ctx, filter)
}

// =============================================================================
// SUMMARY - Derived totals for a range
// =============================================================================

type CategoryTotal struct {
	Category string
	Type     RecordType
	Total    Amount
	Count    int
}

type Summary struct {
	OwnerID    OwnerID
	Range      DayRange
	Income     Amount
	Expense    Amount
	Net        Amount
	Categories []CategoryTotal
}

// Summary totals an owner's records in r. Totals are reported in IRR; IRT
// records are converted before summing.
func (l *Ledger) Summary(ctx context.Context, owner OwnerID, r DayRange) (Summary, error) {
	recs, err := l.Store.ListRecords(ctx, RecordFilter{OwnerID: owner, Range: r})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(owner, r, recs), nil
}

func Summarize(owner OwnerID, r DayRange, recs []FinancialRecord) Summary {
	currency := CurrencyIRR
	s := Summary{
		OwnerID: owner,
		Range:   r,
		Income:  Amount{Currency: currency},
		Expense: Amount{Currency: currency},
	}

	type catKey struct {
		category string
		typ      RecordType
	}
	byCat := make(map[catKey]*CategoryTotal)

	for _, rec := range recs {
		amount := rec.Amount.InRials()
		switch rec.Type {
		case RecordIncome:
			s.Income = s.Income.Add(amount)
		case RecordExpense:
			s.Expense = s.Expense.Add(amount)
		}
		k := catKey{rec.Category, rec.Type}
		ct, ok := byCat[k]
		if !ok {
			ct = &CategoryTotal{Category: rec.Category, Type: rec.Type, Total: Amount{Currency: currency}}
			byCat[k] = ct
		}
		ct.Total = ct.Total.Add(amount)
		ct.Count++
	}
	s.Net = s.Income.Sub(s.Expense)

	for _, ct := range byCat {
		s.Categories = append(s.Categories, *ct)
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		if s.Categories[i].Type != s.Categories[j].Type {
			return s.Categories[i].Type < s.Categories[j].Type
		}
		return s.Categories[i].Category < s.Categories[j].Category
	})
	return s
}
