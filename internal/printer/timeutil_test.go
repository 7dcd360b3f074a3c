package printer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		time time.Time
		exp  string
	}{
		"Now should be zero seconds ago":           {time: now, exp: "0 seconds ago"},
		"One second should be singular":            {time: now.Add(-time.Second), exp: "1 second ago"},
		"Seconds should be used below a minute":    {time: now.Add(-59 * time.Second), exp: "59 seconds ago"},
		"One minute should be singular":            {time: now.Add(-61 * time.Second), exp: "1 minute ago"},
		"Minutes should be used below an hour":     {time: now.Add(-45 * time.Minute), exp: "45 minutes ago"},
		"Hours should be used below a day":         {time: now.Add(-5*time.Hour - 30*time.Minute), exp: "5 hours ago"},
		"One day should be singular":               {time: now.Add(-25 * time.Hour), exp: "1 day ago"},
		"Days should be used for bigger spans":     {time: now.Add(-10 * 24 * time.Hour), exp: "10 days ago"},
		"A future time should be in the future":    {time: now.Add(time.Minute), exp: "in the future"},
		"Other time zones should not change spans": {time: now.Add(-2 * time.Hour).In(time.FixedZone("X", 3*3600)), exp: "2 hours ago"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, timeAgo(test.time, now))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 30, 11, 5, 9, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "2026-01-30 10:05:09 UTC", FormatTimestamp(ts))
}

func TestFormatDuration(t *testing.T) {
	tests := map[string]struct {
		d   time.Duration
		exp string
	}{
		"Sub second durations should be zero":    {d: 300 * time.Millisecond, exp: "0s"},
		"Durations should be rounded to seconds": {d: 90*time.Second + 600*time.Millisecond, exp: "1m31s"},
		"Negative durations should be zero":      {d: -time.Second, exp: "0s"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, FormatDuration(test.d))
		})
	}
}
