package app

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"feedbot/internal/services/feeding"
)

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		cmd  string
		args string
	}{
		{"/feed 18:30", "/feed", "18:30"},
		{"/feed@feedbot 24.12 18:30", "/feed", "24.12 18:30"},
		{"/CancelAll", "/cancelall", ""},
		{"/next", "/next", ""},
		{"/cancel   7", "/cancel", "7"},
	}
	for _, tt := range tests {
		cmd, args := splitCommand(tt.in)
		if cmd != tt.cmd || args != tt.args {
			t.Fatalf("splitCommand(%q) = (%q, %q), want (%q, %q)", tt.in, cmd, args, tt.cmd, tt.args)
		}
	}
}

func TestScheduleErrTextNamesTheLimit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want string
	}{
		{feeding.ErrPastTime, "past"},
		{fmt.Errorf("%w: need at least 5m0s lead", feeding.ErrTooSoon), "soon"},
		{fmt.Errorf("%w: max 168h0m0s ahead", feeding.ErrTooFar), "far"},
		{feeding.ErrCapacityExceeded, "Too many"},
		{errors.New("db locked"), "try again"},
	}
	for _, tt := range tests {
		got := scheduleErrText(tt.err)
		if !strings.Contains(got, tt.want) {
			t.Fatalf("scheduleErrText(%v) = %q, want substring %q", tt.err, got, tt.want)
		}
	}
}
