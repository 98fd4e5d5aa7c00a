package main

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseLogged(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog bool
	}{
		{"clean close", nil, false},
		{"close error", errors.New("disk full"), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			closed := false
			closeLogged(logger, "profile", closerFunc(func() error {
				closed = true
				return tc.err
			}))

			if !closed {
				t.Fatal("Close not called")
			}
			logged := strings.Contains(buf.String(), "failed to close profile")
			if logged != tc.wantLog {
				t.Errorf("logged = %v, want %v (output %q)", logged, tc.wantLog, buf.String())
			}
			if tc.wantLog && !strings.Contains(buf.String(), "disk full") {
				t.Errorf("error text missing from log: %q", buf.String())
			}
		})
	}
}
