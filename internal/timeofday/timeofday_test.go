package timeofday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in     string
		hour   int
		minute int
	}{
		{"9:00 AM", 9, 0},
		{"9:00AM", 9, 0},
		{" 9:30 am ", 9, 30},
		{"12:00 AM", 0, 0},
		{"12:15 PM", 12, 15},
		{"6:00 PM", 18, 0},
		{"11:59pm", 23, 59},
		{"09:05 AM", 9, 5},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.hour, got.Hour, tc.in)
		assert.Equal(t, tc.minute, got.Minute, tc.in)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "9:00", "13:00 PM", "0:30 AM", "9:60 AM", "9:5 AM", "nine AM", "9:00 XM", "+9:00 AM", "9 AM"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "9:00 AM", Normalize("  09:00am"))
	assert.Equal(t, "6:00 PM", Normalize("6:00 pm"))
	assert.Equal(t, "LUNCH TIME", Normalize(" lunch   time "))
}

func TestStringRoundTrip(t *testing.T) {
	for _, in := range []string{"12:00 AM", "12:30 PM", "1:05 AM", "11:45 PM"} {
		assert.Equal(t, in, MustParse(in).String())
	}
}

func TestOnUsesDayLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	day := time.Date(2026, 3, 4, 23, 10, 0, 0, loc)
	got := MustParse("6:00 PM").On(day)
	assert.Equal(t, time.Date(2026, 3, 4, 18, 0, 0, 0, loc), got)
}

func TestSetHelpers(t *testing.T) {
	set := NormalizeAll([]string{"9:00am", "9:00 AM", "6:00 PM", ""})
	assert.Equal(t, []string{"9:00 AM", "6:00 PM"}, set)
	assert.True(t, Contains(set, "06:00 pm"))
	assert.Equal(t, []string{"9:00 AM", "6:00 PM", "1:00 PM"}, Union(set, []string{"1:00pm", "9:00 AM"}))
	assert.Equal(t, []string{"6:00 PM"}, Without(set, "9:00AM"))
}
