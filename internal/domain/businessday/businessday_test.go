package businessday

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOffset(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "evening start", input: "20:00", want: 20 * time.Hour},
		{name: "midnight", input: "00:00", want: 0},
		{name: "minutes", input: "07:45", want: 7*time.Hour + 45*time.Minute},
		{name: "surrounding spaces", input: " 09:30 ", want: 9*time.Hour + 30*time.Minute},
		{name: "last minute of day", input: "23:59", want: 23*time.Hour + 59*time.Minute},
		{name: "hour too large", input: "24:00", wantErr: true},
		{name: "minute too large", input: "10:60", wantErr: true},
		{name: "negative hour", input: "-1:00", wantErr: true},
		{name: "missing colon", input: "2000", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "letters", input: "ab:cd", wantErr: true},
		{name: "missing minutes", input: "20:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOffset(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, shared.ErrConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPolicy(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p, err := NewPolicy("Asia/Almaty", "20:00")
		require.NoError(t, err)
		assert.Equal(t, "Asia/Almaty", p.Location().String())
		assert.Equal(t, 20*time.Hour, p.Offset())
		assert.Equal(t, "20:00", p.DayStart())
	})

	t.Run("unknown timezone", func(t *testing.T) {
		_, err := NewPolicy("Mars/Olympus", "20:00")
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrConfiguration))
	})

	t.Run("bad offset", func(t *testing.T) {
		_, err := NewPolicy("UTC", "8pm")
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrConfiguration))
	})

	t.Run("zero value behaves as UTC midnight", func(t *testing.T) {
		var p Policy
		instant := time.Date(2024, 3, 5, 0, 30, 0, 0, time.UTC)
		assert.Equal(t, Date(2024, 3, 5), p.BucketDate(instant))
		assert.Equal(t, "00:00", p.DayStart())
	})
}

func TestPolicy_BucketDate(t *testing.T) {
	p, err := NewPolicy("Asia/Almaty", "20:00")
	require.NoError(t, err)
	loc := p.Location()

	t.Run("one minute either side of the day start", func(t *testing.T) {
		before := time.Date(2024, 1, 10, 19, 59, 0, 0, loc).UTC()
		after := time.Date(2024, 1, 10, 20, 1, 0, 0, loc).UTC()

		assert.Equal(t, Date(2024, 1, 9), p.BucketDate(before))
		assert.Equal(t, Date(2024, 1, 10), p.BucketDate(after))
		assert.True(t, p.BucketDate(before).Before(p.BucketDate(after)))
	})

	t.Run("exactly at day start opens the new bucket", func(t *testing.T) {
		at := time.Date(2024, 1, 10, 20, 0, 0, 0, loc)
		assert.Equal(t, Date(2024, 1, 10), p.BucketDate(at))
	})

	t.Run("early morning belongs to previous business day", func(t *testing.T) {
		at := time.Date(2024, 1, 11, 3, 0, 0, 0, loc)
		assert.Equal(t, Date(2024, 1, 10), p.BucketDate(at))
	})

	t.Run("crosses month and year boundary", func(t *testing.T) {
		at := time.Date(2024, 1, 1, 10, 0, 0, 0, loc)
		assert.Equal(t, Date(2023, 12, 31), p.BucketDate(at))
	})

	t.Run("input location does not matter", func(t *testing.T) {
		at := time.Date(2024, 1, 10, 21, 0, 0, 0, loc)
		assert.Equal(t, p.BucketDate(at), p.BucketDate(at.UTC()))
	})
}

func TestPolicy_WindowToUTC(t *testing.T) {
	p, err := NewPolicy("Asia/Almaty", "20:00")
	require.NoError(t, err)
	loc := p.Location()

	start, end := p.WindowToUTC(Date(2024, 1, 10), Date(2024, 1, 12))

	assert.Equal(t, time.UTC, start.Location())
	assert.True(t, start.Equal(time.Date(2024, 1, 10, 20, 0, 0, 0, loc)))
	assert.True(t, end.Equal(time.Date(2024, 1, 13, 20, 0, 0, 0, loc)))

	t.Run("window edges bucket inside the range", func(t *testing.T) {
		assert.Equal(t, Date(2024, 1, 10), p.BucketDate(start))
		assert.Equal(t, Date(2024, 1, 12), p.BucketDate(end.Add(-time.Nanosecond)))
		assert.Equal(t, Date(2024, 1, 13), p.BucketDate(end))
	})

	t.Run("single day spans 24 hours", func(t *testing.T) {
		s, e := p.WindowToUTC(Date(2024, 2, 1), Date(2024, 2, 1))
		assert.Equal(t, 24*time.Hour, e.Sub(s))
	})

	t.Run("month boundary", func(t *testing.T) {
		s, e := p.WindowToUTC(Date(2024, 1, 31), Date(2024, 1, 31))
		assert.True(t, s.Equal(time.Date(2024, 1, 31, 20, 0, 0, 0, loc)))
		assert.True(t, e.Equal(time.Date(2024, 2, 1, 20, 0, 0, 0, loc)))
	})
}

func TestPolicy_WallClockAcrossDST(t *testing.T) {
	p, err := NewPolicy("Europe/Berlin", "06:00")
	require.NoError(t, err)
	loc := p.Location()

	// Clocks jump forward at 02:00 on 2024-03-31, so the business day
	// opened at 06:00 on the 30th is one hour short.
	s, e := p.WindowToUTC(Date(2024, 3, 30), Date(2024, 3, 30))
	assert.Equal(t, 23*time.Hour, e.Sub(s))
	assert.Equal(t, Date(2024, 3, 30), p.BucketDate(time.Date(2024, 3, 31, 5, 59, 0, 0, loc)))
	assert.Equal(t, Date(2024, 3, 31), p.BucketDate(time.Date(2024, 3, 31, 6, 0, 0, 0, loc)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-06")
	require.NoError(t, err)
	assert.Equal(t, Date(2024, 1, 6), d)

	_, err = ParseDate("06.01.2024")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidArgument))
}

func TestTruncateDate(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	assert.Equal(t, Date(2024, 1, 6), TruncateDate(time.Date(2024, 1, 6, 23, 59, 0, 0, loc)))
}
