package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var fast = Policy{
	Attempts:     3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2.0,
}

func TestDo(t *testing.T) {
	errTransient := errors.New("connection refused")
	errFatal := errors.New("bad executable path")

	tests := []struct {
		name      string
		failures  int
		failWith  error
		wantCalls int
		wantErr   error
	}{
		{"first attempt", 0, nil, 1, nil},
		{"recovers after transient failures", 2, errTransient, 3, nil},
		{"gives up", 10, errTransient, 3, errTransient},
		{"permanent stops immediately", 10, Permanent(errFatal), 1, errFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := Do(context.Background(), fast, func(context.Context) (string, error) {
				calls++
				if calls <= tt.failures {
					return "", tt.failWith
				}
				return "ws://127.0.0.1:9222", nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Do() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			if got != "ws://127.0.0.1:9222" {
				t.Errorf("Do() = %q", got)
			}
		})
	}
}

func TestDo_PermanentIsUnwrapped(t *testing.T) {
	base := errors.New("denied")
	_, err := Do(context.Background(), fast, func(context.Context) (int, error) {
		return 0, Permanent(base)
	})
	if err != base {
		t.Errorf("Do() error = %#v, want the unwrapped error", err)
	}
	if IsPermanent(err) {
		t.Error("returned error should no longer be marked permanent")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := Policy{Attempts: 5, InitialDelay: time.Hour, Multiplier: 1}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, slow, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("not yet")
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
		if !strings.Contains(err.Error(), "not yet") {
			t.Errorf("error should mention the last failure: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fast, func(context.Context) (int, error) {
		calls++
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, _ = Do(context.Background(), Policy{}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("x")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
