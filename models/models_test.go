package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		event   Event
		want    State
		wantErr bool
	}{
		{"notify from active", StateActive, EventNotify, StateNotified, false},
		{"notify twice", StateNotified, EventNotify, StateNotified, true},
		{"notify after completion", StateCompleted, EventNotify, StateCompleted, true},
		{"complete from active", StateActive, EventComplete, StateCompleted, false},
		{"complete from notified", StateNotified, EventComplete, StateCompleted, false},
		{"complete twice", StateCompleted, EventComplete, StateCompleted, true},
		{"unknown event", StateActive, Event("reset"), StateActive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTransition))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReminderApply(t *testing.T) {
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	t.Run("notify sets timestamp and keeps flag after completion", func(t *testing.T) {
		r := &Reminder{ID: "r1", Frequency: FrequencyOnce, State: StateActive}
		require.NoError(t, r.Apply(EventNotify, at))
		assert.True(t, r.Notified())
		assert.False(t, r.Completed())
		require.NotNil(t, r.NotifiedAt)

		require.NoError(t, r.Apply(EventComplete, at.Add(time.Hour)))
		assert.True(t, r.Notified())
		assert.True(t, r.Completed())
		assert.Equal(t, at.Add(time.Hour), r.UpdatedAt)
	})

	t.Run("daily reminders never become notified", func(t *testing.T) {
		r := &Reminder{ID: "r2", Frequency: FrequencyDaily, State: StateActive}
		err := r.Apply(EventNotify, at)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StateActive, r.State)
		assert.Nil(t, r.NotifiedAt)
	})
}

func TestDraftMaterialize(t *testing.T) {
	now := time.Date(2026, 10, 15, 18, 30, 0, 0, time.UTC)

	d := Draft{Text: "pagar conta"}.Materialize(now)
	require.NotNil(t, d.Date)
	assert.Equal(t, Date{2026, time.October, 15}, *d.Date)
	assert.Equal(t, DefaultTime, d.Time)
	assert.Equal(t, FrequencyOnce, d.Frequency)
	assert.NoError(t, d.Validate())

	empty := Draft{Text: "   "}.Materialize(now)
	assert.Error(t, empty.Validate())
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("08:05")
	require.NoError(t, err)
	assert.Equal(t, 8, h)
	assert.Equal(t, 5, m)

	for _, bad := range []string{"", "8", "24:00", "12:60", "aa:bb"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "07:00", FormatClock(7, 0))
}

func TestDate(t *testing.T) {
	_, err := NewDate(2026, time.February, 31)
	assert.Error(t, err)

	d, err := NewDate(2026, time.December, 31)
	require.NoError(t, err)
	assert.Equal(t, Date{2027, time.January, 1}, d.AddDays(1))
	assert.Equal(t, Date{2026, time.December, 30}, d.AddDays(-1))
	assert.True(t, d.After(Date{2026, time.December, 30}))
	assert.True(t, d.Before(Date{2027, time.January, 1}))
	assert.Equal(t, "31/12/2026", d.Local())

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-12-31"`, string(raw))

	var back Date
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, d, back)

	var scanned Date
	require.NoError(t, scanned.Scan([]byte("2026-05-15")))
	assert.Equal(t, Date{2026, time.May, 15}, scanned)
	require.NoError(t, scanned.Scan(time.Date(2026, 5, 16, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, Date{2026, time.May, 16}, scanned)
}
