/*
store.go - Persistence interface for financial records

PURPOSE:
  Defines the interface between the ledger logic and the database.
  Different implementations use SQLite or in-memory storage.

KEY INTERFACES:
  RecordStore:   Append-only financial record persistence
  RecordFilter:  Owner-scoped listing criteria

APPEND-ONLY CONTRACT:
  - Append(): Single record write
  - NO Update() or Delete() methods exist
  A wrong manual entry is corrected with an opposite record.

IDEMPOTENCY:
  System-generated records (routine payouts, task rewards) carry an
  idempotency key. A second write with the same key is rejected with
  ErrDuplicateIdempotencyKey, which is how retried reconciler runs avoid
  paying twice.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using RecordStore
  - routine/store.go: Job persistence used by the reconciler
*/
package generic

import "context"

// RecordStore handles persistence of financial records.
// IMPORTANT: RecordStore is APPEND-ONLY.
type RecordStore interface {
	// AppendRecord persists a record. Returns ErrDuplicateIdempotencyKey if
	// the record's key is already present.
	AppendRecord(ctx context.Context, rec FinancialRecord) error

	// ListRecords returns an owner's records matching the filter, newest first.
	ListRecords(ctx context.Context, filter RecordFilter) ([]FinancialRecord, error)

	// RecordExists checks if an idempotency key already exists.
	RecordExists(ctx context.Context, idempotencyKey string) (bool, error)
}

// RecordFilter selects records for one owner.
type RecordFilter struct {
	OwnerID      OwnerID
	Type         RecordType // empty = any
	Category     string     // empty = any
	RoutineJobID string     // empty = any
	Range        DayRange
	Limit        int // 0 = no limit
}

// Matches applies the filter in memory. Stores without query support use it.
func (f RecordFilter) Matches(rec FinancialRecord) bool {
	if f.OwnerID != "" && rec.OwnerID != f.OwnerID {
		return false
	}
	if f.Type != "" && rec.Type != f.Type {
		return false
	}
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	if f.RoutineJobID != "" && rec.RoutineJobID != f.RoutineJobID {
		return false
	}
	return f.Range.Contains(rec.Date)
}
