// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/routine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements routine.Store, routine.JobRepository and
// generic.RecordStore without transactions, so the reconciler takes its
// compensating path. Wrap it in TxMemory for routine.TxStore.
type Memory struct {
	mu          sync.RWMutex
	jobs        map[routine.JobID]routine.Job
	completions map[routine.JobID][]completion
	records     []generic.FinancialRecord
	idempotency map[string]bool
}

type completion struct {
	Cycle int
	Day   generic.Day
}

func NewMemory() *Memory {
	return &Memory{
		jobs:        make(map[routine.JobID]routine.Job),
		completions: make(map[routine.JobID][]completion),
		idempotency: make(map[string]bool),
	}
}

// =============================================================================
// JOB REPOSITORY
// =============================================================================

func (m *Memory) CreateJob(_ context.Context, job routine.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	job.Completions = nil
	job.CreatedAt, job.UpdatedAt = now, now
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *Memory) GetJob(_ context.Context, owner generic.OwnerID, id routine.JobID) (*routine.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok || job.OwnerID != owner {
		return nil, generic.ErrJobNotFound
	}
	out := m.withCompletionsLocked(job)
	return &out, nil
}

func (m *Memory) ListJobs(_ context.Context, owner generic.OwnerID) ([]routine.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []routine.Job
	for _, job := range m.jobs {
		if job.OwnerID == owner {
			out = append(out, m.withCompletionsLocked(job))
		}
	}
	sortJobs(out)
	return out, nil
}

// UpdateJob replaces user-editable fields only. Cycle, completions and
// LastPayoutDate are system-owned and kept as stored.
func (m *Memory) UpdateJob(_ context.Context, job routine.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.jobs[job.ID]
	if !ok || cur.OwnerID != job.OwnerID {
		return generic.ErrJobNotFound
	}
	cur.Name = job.Name
	cur.Earnings = job.Earnings
	cur.Frequency = job.Frequency
	cur.DaysOfWeek = append([]routine.Weekday(nil), job.DaysOfWeek...)
	cur.Active = job.Active
	cur.UpdatedAt = time.Now().UTC()
	m.jobs[job.ID] = cur
	return nil
}

func (m *Memory) DeleteJob(_ context.Context, owner generic.OwnerID, id routine.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok || job.OwnerID != owner {
		return generic.ErrJobNotFound
	}
	delete(m.jobs, id)
	delete(m.completions, id)
	return nil
}

// =============================================================================
// RECONCILER STORE
// =============================================================================

func (m *Memory) ListActiveJobs(_ context.Context) ([]routine.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listActiveLocked(), nil
}

func (m *Memory) AppendCompletion(_ context.Context, jobID routine.JobID, cycle int, day generic.Day) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendCompletionLocked(jobID, cycle, day)
}

func (m *Memory) ClosePayoutCycle(_ context.Context, jobID routine.JobID, cycle int, day generic.Day) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCycleLocked(jobID, cycle, day)
}

func (m *Memory) LatestPayout(_ context.Context, jobID routine.JobID) (*generic.FinancialRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestPayoutLocked(jobID), nil
}

// =============================================================================
// RECORD STORE
// =============================================================================

func (m *Memory) AppendRecord(_ context.Context, rec generic.FinancialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendRecordLocked(rec)
}

func (m *Memory) ListRecords(_ context.Context, filter generic.RecordFilter) ([]generic.FinancialRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRecordsLocked(filter), nil
}

func (m *Memory) RecordExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// LOCKED HELPERS
// =============================================================================

func (m *Memory) listActiveLocked() []routine.Job {
	var out []routine.Job
	for _, job := range m.jobs {
		if job.Active {
			out = append(out, m.withCompletionsLocked(job))
		}
	}
	sortJobs(out)
	return out
}

func (m *Memory) appendCompletionLocked(jobID routine.JobID, cycle int, day generic.Day) error {
	if _, ok := m.jobs[jobID]; !ok {
		return generic.ErrJobNotFound
	}
	for _, c := range m.completions[jobID] {
		if c.Day.Equal(day) {
			return generic.ErrDuplicateCompletion
		}
	}
	m.completions[jobID] = append(m.completions[jobID], completion{Cycle: cycle, Day: day})
	return nil
}

func (m *Memory) closeCycleLocked(jobID routine.JobID, cycle int, day generic.Day) error {
	job, ok := m.jobs[jobID]
	if !ok {
		return generic.ErrJobNotFound
	}
	if job.Cycle != cycle {
		return generic.ErrConcurrentModification
	}
	job.Cycle++
	job.LastPayoutDate = &day
	job.UpdatedAt = time.Now().UTC()
	m.jobs[jobID] = job
	return nil
}

func (m *Memory) latestPayoutLocked(jobID routine.JobID) *generic.FinancialRecord {
	var latest *generic.FinancialRecord
	for i := range m.records {
		rec := m.records[i]
		if rec.RoutineJobID != string(jobID) {
			continue
		}
		if latest == nil || rec.Date.After(latest.Date) {
			latest = &rec
		}
	}
	return latest
}

func (m *Memory) appendRecordLocked(rec generic.FinancialRecord) error {
	if rec.IdempotencyKey != "" {
		if m.idempotency[rec.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		m.idempotency[rec.IdempotencyKey] = true
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) listRecordsLocked(filter generic.RecordFilter) []generic.FinancialRecord {
	var out []generic.FinancialRecord
	for _, rec := range m.records {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (m *Memory) withCompletionsLocked(job routine.Job) routine.Job {
	out := cloneJob(job)
	out.Completions = nil
	for _, c := range m.completions[job.ID] {
		if c.Cycle == job.Cycle {
			out.Completions = append(out.Completions, c.Day)
		}
	}
	return out
}

func cloneJob(job routine.Job) routine.Job {
	job.DaysOfWeek = append([]routine.Weekday(nil), job.DaysOfWeek...)
	job.Completions = append([]generic.Day(nil), job.Completions...)
	if job.LastPayoutDate != nil {
		d := *job.LastPayoutDate
		job.LastPayoutDate = &d
	}
	return job
}

func sortJobs(jobs []routine.Job) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(routine.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	jobs        map[routine.JobID]routine.Job
	completions map[routine.JobID][]completion
	records     []generic.FinancialRecord
	idempotency map[string]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		jobs:        make(map[routine.JobID]routine.Job, len(tm.jobs)),
		completions: make(map[routine.JobID][]completion, len(tm.completions)),
		records:     append([]generic.FinancialRecord(nil), tm.records...),
		idempotency: make(map[string]bool, len(tm.idempotency)),
	}
	for k, v := range tm.jobs {
		s.jobs[k] = cloneJob(v)
	}
	for k, v := range tm.completions {
		s.completions[k] = append([]completion(nil), v...)
	}
	for k, v := range tm.idempotency {
		s.idempotency[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.jobs = s.jobs
	tm.completions = s.completions
	tm.records = s.records
	tm.idempotency = s.idempotency
}

// txMemoryView runs against the parent while WithTx holds its lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) ListActiveJobs(_ context.Context) ([]routine.Job, error) {
	return tv.parent.listActiveLocked(), nil
}

func (tv *txMemoryView) AppendCompletion(_ context.Context, jobID routine.JobID, cycle int, day generic.Day) error {
	return tv.parent.appendCompletionLocked(jobID, cycle, day)
}

func (tv *txMemoryView) ClosePayoutCycle(_ context.Context, jobID routine.JobID, cycle int, day generic.Day) error {
	return tv.parent.closeCycleLocked(jobID, cycle, day)
}

func (tv *txMemoryView) LatestPayout(_ context.Context, jobID routine.JobID) (*generic.FinancialRecord, error) {
	return tv.parent.latestPayoutLocked(jobID), nil
}

func (tv *txMemoryView) AppendRecord(_ context.Context, rec generic.FinancialRecord) error {
	return tv.parent.appendRecordLocked(rec)
}

func (tv *txMemoryView) ListRecords(_ context.Context, filter generic.RecordFilter) ([]generic.FinancialRecord, error) {
	return tv.parent.listRecordsLocked(filter), nil
}

func (tv *txMemoryView) RecordExists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}
