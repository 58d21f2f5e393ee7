package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func frozenClock(t *testing.T) time.Time {
	t.Helper()
	now := time.Date(2024, time.July, 23, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })
	return now
}

func TestNormalizeScrapedDate_Empty(t *testing.T) {
	now := frozenClock(t)
	assert.Equal(t, now, NormalizeScrapedDate(""))
	assert.Equal(t, now, NormalizeScrapedDate("   "))
}

func TestNormalizeScrapedDate_HoursAgo(t *testing.T) {
	now := frozenClock(t)
	assert.Equal(t, now.Add(-2*time.Hour), NormalizeScrapedDate("2 hours ago"))
	assert.Equal(t, now.Add(-1*time.Hour), NormalizeScrapedDate("1 hour ago"))
}

func TestNormalizeScrapedDate_DaysAgo(t *testing.T) {
	now := frozenClock(t)
	assert.Equal(t, now.Add(-5*24*time.Hour), NormalizeScrapedDate("5 days ago"))
}

func TestNormalizeScrapedDate_RelativeWithSurroundingWords(t *testing.T) {
	now := frozenClock(t)
	assert.Equal(t, now.Add(-3*time.Hour), NormalizeScrapedDate("Posted 3 hours ago"))
	assert.Equal(t, now.Add(-2*24*time.Hour), NormalizeScrapedDate("Updated 2 days ago."))
}

func TestNormalizeScrapedDate_RelativeUnparsableNumber(t *testing.T) {
	now := frozenClock(t)
	assert.Equal(t, now, NormalizeScrapedDate("a few hours ago"))
	assert.Equal(t, now, NormalizeScrapedDate("ago"))
}

func TestNormalizeScrapedDate_PostedOnAbsolute(t *testing.T) {
	frozenClock(t)
	want := time.Date(2024, time.July, 21, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, NormalizeScrapedDate("Posted on 21 Jul 2024"))
	assert.Equal(t, want, NormalizeScrapedDate("posted on 21 Jul 2024"))
}

func TestNormalizeScrapedDate_BareAbsoluteFormats(t *testing.T) {
	frozenClock(t)
	want := time.Date(2024, time.July, 21, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"21 Jul 2024", "2024-07-21", "Jul 21, 2024", "July 21, 2024", "21 July 2024"} {
		assert.Equal(t, want, NormalizeScrapedDate(in), "input %q", in)
	}
}

func TestNormalizeScrapedDate_ISO8601(t *testing.T) {
	frozenClock(t)
	want := time.Date(2024, time.May, 1, 8, 30, 0, 0, time.UTC)
	assert.Equal(t, want, NormalizeScrapedDate("2024-05-01T08:30:00Z"))
}

func TestNormalizeScrapedDate_GarbageFallsBackToNow(t *testing.T) {
	now := frozenClock(t)
	assert.Equal(t, now, NormalizeScrapedDate("last Tuesday-ish"))
	assert.Equal(t, now, NormalizeScrapedDate("!!!"))
}

// Every output must be a valid instant regardless of input.
func TestNormalizeScrapedDate_NeverZero(t *testing.T) {
	frozenClock(t)
	inputs := []string{"", "ago", "99 parsecs ago", "Posted on", "\t\n", "0 days ago", "July", "2024"}
	for _, in := range inputs {
		assert.False(t, NormalizeScrapedDate(in).IsZero(), "input %q", in)
	}
}
