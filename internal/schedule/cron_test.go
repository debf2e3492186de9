// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"*/30 * * * *", false},
		{"0 3 * * 1-5", false},
		{"@hourly", false},
		{"@every 10m", false},
		{"", true},
		{"* * *", true},
		{"61 * * * *", true},
		{"*/5 * * * * *", true},
		{"not a schedule", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, err := Parse(tt.expr)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSchedule)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expr, s.String())
		})
	}
}

func TestSchedule_Next(t *testing.T) {
	s := MustParse("*/5 * * * *")
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC), s.Next(at), "strictly after t")
	assert.Equal(t, 5*time.Minute, s.Interval(at))
	assert.Equal(t, time.Hour, MustParse("@hourly").Interval(at))
}

func TestSchedule_ZeroValue(t *testing.T) {
	var s Schedule
	assert.True(t, s.Next(time.Now()).IsZero())
	assert.Zero(t, s.Interval(time.Now()))
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("bogus") })
}
