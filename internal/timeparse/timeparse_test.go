package timeparse

import (
	"errors"
	"testing"
	"time"
)

func TestParseClockRollover(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	tests := []struct {
		name string
		raw  string
		now  time.Time
		want time.Time
	}{
		{
			name: "later today",
			raw:  "10:00",
			now:  time.Date(2024, 1, 1, 9, 0, 0, 0, loc),
			want: time.Date(2024, 1, 1, 10, 0, 0, 0, loc),
		},
		{
			name: "already past rolls to tomorrow",
			raw:  "10:00",
			now:  time.Date(2024, 1, 1, 11, 0, 0, 0, loc),
			want: time.Date(2024, 1, 2, 10, 0, 0, 0, loc),
		},
		{
			name: "exactly now rolls to tomorrow",
			raw:  "11:00",
			now:  time.Date(2024, 1, 1, 11, 0, 0, 0, loc),
			want: time.Date(2024, 1, 2, 11, 0, 0, 0, loc),
		},
		{
			name: "single digit hour",
			raw:  "7:05",
			now:  time.Date(2024, 1, 1, 6, 0, 0, 0, loc),
			want: time.Date(2024, 1, 1, 7, 5, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw, tt.now)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Parse(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDayMonthRollover(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, loc)

	// Future date this year: no rollover.
	got, err := Parse("31.12 23:59", now)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if want := time.Date(2024, 12, 31, 23, 59, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// Date already behind us: next year, not tomorrow.
	got, err = Parse("01.01 08:00", now)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if want := time.Date(2025, 1, 1, 8, 0, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseFullDateLiteral(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, loc)

	// A full date in the past is returned literally, no rollover.
	got, err := Parse("01.01.2024 00:00", now)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if want := time.Date(2024, 1, 1, 0, 0, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	inputs := []string{
		"",
		"not a time",
		"25:00",
		"12:61",
		"12:5", // minutes must be two digits
		"32.01 10:00",
		"31.02 10:00", // February 31 normalizes away
		"00.00 10:00",
		"01.13 10:00",
		"01.01.24 10:00", // two-digit year not accepted
		"10:00 extra",
	}
	for _, raw := range inputs {
		if _, err := Parse(raw, now); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("Parse(%q) error = %v, want ErrInvalidFormat", raw, err)
		}
	}
}

func TestParseKeepsLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, loc)
	got, err := Parse("10:00", now)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got.Location() != loc {
		t.Fatalf("location = %v, want %v", got.Location(), loc)
	}
}
