package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DukeRupert/notebook/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		Interval:        time.Second,
		TaskTimeout:     time.Second,
		ShutdownTimeout: time.Second,
		RunOnStart:      true,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "interval too short",
			config: Config{
				Interval:        500 * time.Millisecond,
				TaskTimeout:     5 * time.Minute,
				ShutdownTimeout: 30 * time.Second,
			},
			wantErr: true,
		},
		{
			name: "task timeout too short",
			config: Config{
				Interval:        time.Hour,
				TaskTimeout:     0,
				ShutdownTimeout: 30 * time.Second,
			},
			wantErr: true,
		},
		{
			name: "shutdown timeout too short",
			config: Config{
				Interval:        time.Hour,
				TaskTimeout:     5 * time.Minute,
				ShutdownTimeout: 10 * time.Millisecond,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "permanent error",
			err:  NewPermanentError(context.Canceled),
			want: true,
		},
		{
			name: "regular error",
			err:  context.Canceled,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWorker_RunOnStart(t *testing.T) {
	w, err := New(testConfig(), newTestLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ran := make(chan struct{}, 1)
	w.Register(TaskFunc{TaskName: "on-start", Fn: func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}}, time.Hour)

	w.Start(context.Background())
	defer w.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run on start")
	}
}

func TestWorker_PermanentErrorStopsTask(t *testing.T) {
	w, err := New(testConfig(), newTestLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var runs atomic.Int32
	w.Register(TaskFunc{TaskName: "broken", Fn: func(ctx context.Context) error {
		runs.Add(1)
		return NewPermanentError(errors.New("misconfigured"))
	}}, time.Second)

	w.Start(context.Background())
	time.Sleep(1500 * time.Millisecond)
	w.Stop()

	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestWorker_StopWithoutStart(t *testing.T) {
	w, err := New(testConfig(), newTestLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		w.Stop()
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked")
	}
}

func TestWorker_TaskTimeout(t *testing.T) {
	w, err := New(testConfig(), newTestLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	deadline := make(chan bool, 1)
	w.Register(TaskFunc{TaskName: "slow", Fn: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		select {
		case deadline <- ok:
		default:
		}
		return nil
	}}, time.Hour)

	w.Start(context.Background())
	defer w.Stop()

	select {
	case ok := <-deadline:
		if !ok {
			t.Error("task context should carry a deadline")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

type mockPruner struct {
	deleted int64
	err     error
	calls   int
}

func (m *mockPruner) DeleteExpired(ctx context.Context) (int64, error) {
	m.calls++
	return m.deleted, m.err
}

func TestSessionCleanupTask(t *testing.T) {
	pruner := &mockPruner{deleted: 3}
	task := NewSessionCleanupTask(pruner, newTestLogger())

	if task.Name() != TaskSessionCleanup {
		t.Errorf("Name() = %q, want %q", task.Name(), TaskSessionCleanup)
	}
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if pruner.calls != 1 {
		t.Errorf("DeleteExpired calls = %d, want 1", pruner.calls)
	}
}

func TestSessionCleanupTask_Error(t *testing.T) {
	base := errors.New("db down")
	task := NewSessionCleanupTask(&mockPruner{err: base}, newTestLogger())

	err := task.Run(context.Background())
	if !errors.Is(err, base) {
		t.Errorf("Run() error = %v, want wrapped %v", err, base)
	}
	if IsPermanent(err) {
		t.Error("database errors should be retried on the next tick")
	}
}

func TestSessionCleanupTask_MissingTableIsPermanent(t *testing.T) {
	missing := &pgconn.PgError{Code: "42P01", Message: `relation "sessions" does not exist`}
	// Wrapped the way the session service reports it.
	task := NewSessionCleanupTask(&mockPruner{err: domain.Internal(missing, "SessionService.DeleteExpired", "Failed to delete expired sessions")}, newTestLogger())

	err := task.Run(context.Background())
	if !IsPermanent(err) {
		t.Errorf("Run() error = %v, want permanent", err)
	}
	if !errors.Is(err, missing) {
		t.Errorf("Run() error = %v, want wrapped %v", err, missing)
	}
}
