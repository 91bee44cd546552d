package routine

import (
	"context"

	"github.com/warp/life-planner/generic"
)

// =============================================================================
// STORE - What the reconciler needs from persistence
// =============================================================================

// Store is the system-only view of routine jobs used by the Reconciler.
// User CRUD on jobs lives in JobRepository.
type Store interface {
	generic.RecordStore

	// ListActiveJobs returns every active job with the completions of its
	// open cycle. No owner filter: the reconciler runs with service rights.
	ListActiveJobs(ctx context.Context) ([]Job, error)

	// AppendCompletion logs day in the job's cycle.
	// Returns generic.ErrDuplicateCompletion if day is already logged.
	AppendCompletion(ctx context.Context, jobID JobID, cycle int, day generic.Day) error

	// ClosePayoutCycle advances the job to cycle+1 and sets LastPayoutDate.
	// Returns generic.ErrConcurrentModification if the job is no longer on cycle.
	ClosePayoutCycle(ctx context.Context, jobID JobID, cycle int, day generic.Day) error

	// LatestPayout returns the newest payout record for the job, or nil.
	LatestPayout(ctx context.Context, jobID JobID) (*generic.FinancialRecord, error)
}

// TxStore wraps Store with transaction support.
// The reconciler writes payout record and cycle reset through WithTx when
// the store offers it.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// JobRepository is the owner-scoped CRUD surface for user edits.
// It never exposes completion writes.
type JobRepository interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, owner generic.OwnerID, id JobID) (*Job, error)
	ListJobs(ctx context.Context, owner generic.OwnerID) ([]Job, error)
	UpdateJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, owner generic.OwnerID, id JobID) error
}
