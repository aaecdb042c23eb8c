package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRecurrenceRule(t *testing.T) {
	assert.True(t, IsRecurrenceRule("daily"))
	assert.True(t, IsRecurrenceRule("WEEKLY"))
	assert.True(t, IsRecurrenceRule("biweekly"))
	assert.True(t, IsRecurrenceRule("monthly"))
	assert.False(t, IsRecurrenceRule("hourly"))
	assert.False(t, IsRecurrenceRule(""))
}

func TestNextWindowPeriods(t *testing.T) {
	start := time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		rule string
		want time.Time
	}{
		{RecurrenceDaily, time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)},
		{RecurrenceWeekly, time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC)},
		{RecurrenceBiweekly, time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC)},
		// AddDate normalization: Jan 31 + 1 month lands on Mar 3.
		{RecurrenceMonthly, time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		window := NextWindow(tc.rule, start, nil, nil)
		require.NotNil(t, window, tc.rule)
		assert.Equal(t, tc.want, window.Start, tc.rule)
		assert.Nil(t, window.End, tc.rule)
	}
}

func TestNextWindowCarriesDuration(t *testing.T) {
	start := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)

	window := NextWindow(RecurrenceWeekly, start, &end, nil)
	require.NotNil(t, window)
	require.NotNil(t, window.End)
	assert.Equal(t, 90*time.Minute, window.End.Sub(window.Start))
}

func TestNextWindowCutoff(t *testing.T) {
	start := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	cutoff := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

	assert.NotNil(t, NextWindow(RecurrenceDaily, start, nil, &cutoff))
	assert.Nil(t, NextWindow(RecurrenceWeekly, start, nil, &cutoff))
}

func TestNextWindowUnknownRule(t *testing.T) {
	start := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	assert.Nil(t, NextWindow("yearly", start, nil, nil))
}
