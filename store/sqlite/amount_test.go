package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/routine"
)

func TestCorruptStoredAmount_IsAnError(t *testing.T) {
	// GIVEN: A job and a record whose stored amounts were mangled
	ctx := context.Background()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.CreateJob(ctx, routine.Job{
		ID:        "job-1",
		OwnerID:   "user-1",
		Name:      "teaching",
		Earnings:  generic.NewAmountFromInt(100000, generic.CurrencyIRR),
		Frequency: routine.FrequencyDaily,
		Active:    true,
	}))
	require.NoError(t, s.AppendRecord(ctx, generic.FinancialRecord{
		ID:      "rec-1",
		OwnerID: "user-1",
		Type:    generic.RecordIncome,
		Amount:  generic.NewAmountFromInt(500, generic.CurrencyIRR),
		Date:    generic.MustParseDay("2025-03-10"),
	}))
	_, err = s.db.ExecContext(ctx, `UPDATE routine_jobs SET earnings_value = 'lots'`)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `UPDATE financial_records SET amount_value = ''`)
	require.NoError(t, err)

	// WHEN: Reading them back
	_, jobErr := s.GetJob(ctx, "user-1", "job-1")
	_, recErr := s.ListRecords(ctx, generic.RecordFilter{OwnerID: "user-1"})

	// THEN: Both reads fail instead of reporting zero
	assert.ErrorContains(t, jobErr, "job-1")
	assert.ErrorContains(t, recErr, "rec-1")
}
