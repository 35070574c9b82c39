package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const tick = 10 * time.Second

func workSchedule(t *testing.T) Schedule {
	t.Helper()
	var b Bounds
	require.NoError(t, b.UnmarshalText([]byte("09:00-17:00")))
	return Schedule{Name: "work", Monday: b}
}

// 2026-08-24 is a Monday.
func monday(hour, minute, sec int) time.Time {
	return time.Date(2026, time.August, 24, hour, minute, sec, 0, time.UTC)
}

func TestActiveAtStrictBoundaries(t *testing.T) {
	s := workSchedule(t)

	assert.False(t, s.ActiveAt(monday(9, 0, 0), tick, nil), "start boundary is exclusive")
	assert.True(t, s.ActiveAt(monday(9, 0, 1), tick, nil))
	assert.True(t, s.ActiveAt(monday(12, 30, 0), tick, nil))
	assert.False(t, s.ActiveAt(monday(17, 0, 0), tick, nil), "stop boundary is exclusive")
	assert.False(t, s.ActiveAt(monday(18, 0, 0), tick, nil))
}

func TestActiveAtWrongWeekday(t *testing.T) {
	s := workSchedule(t)
	tuesday := monday(12, 0, 0).AddDate(0, 0, 1)
	assert.False(t, s.ActiveAt(tuesday, tick, nil))
}

func TestActiveAtLogsEntryEdge(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	s := workSchedule(t)

	assert.True(t, s.ActiveAt(monday(9, 0, 5), tick, logger))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Entering schedule 'work': '09:00-17:00'", logs.All()[0].Message)

	// Later ticks inside the window stay quiet.
	assert.True(t, s.ActiveAt(monday(9, 0, 15), tick, logger))
	assert.Equal(t, 1, logs.Len())
}

func TestActiveAtLogsExitEdge(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	s := workSchedule(t)

	assert.False(t, s.ActiveAt(monday(17, 0, 5), tick, logger))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Exiting schedule 'work': '09:00-17:00'", logs.All()[0].Message)
}

func TestActiveNames(t *testing.T) {
	work := workSchedule(t)
	var nightBounds Bounds
	require.NoError(t, nightBounds.UnmarshalText([]byte("22:00-23:30")))
	night := Schedule{Name: "night", Monday: nightBounds}

	names := ActiveNames([]Schedule{work, night}, monday(10, 0, 0), tick, nil)
	assert.Equal(t, []string{"work"}, names)

	names = ActiveNames([]Schedule{work, night}, monday(22, 30, 0), tick, nil)
	assert.Equal(t, []string{"night"}, names)

	assert.Nil(t, ActiveNames([]Schedule{work, night}, monday(20, 0, 0), tick, nil))
}
