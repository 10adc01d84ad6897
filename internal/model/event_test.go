package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_CheckInOpen(t *testing.T) {
	t.Parallel()

	opens := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	closes := opens.Add(3 * time.Hour)

	tests := []struct {
		name  string
		event Event
		now   time.Time
		want  bool
	}{
		{"unbounded", Event{}, opens, true},
		{"before opening", Event{CheckInOpensAt: &opens}, opens.Add(-time.Second), false},
		{"at opening", Event{CheckInOpensAt: &opens, CheckInClosesAt: &closes}, opens, true},
		{"inside", Event{CheckInOpensAt: &opens, CheckInClosesAt: &closes}, opens.Add(time.Hour), true},
		{"at closing", Event{CheckInOpensAt: &opens, CheckInClosesAt: &closes}, closes, false},
		{"only closing, after", Event{CheckInClosesAt: &closes}, closes.Add(time.Minute), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.event.CheckInOpen(tc.now))
		})
	}
}
