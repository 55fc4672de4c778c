package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recorder 记录停止顺序
type recorder struct {
	mu      sync.Mutex
	stopped []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = append(r.stopped, name)
}

type stubService struct {
	name     string
	startErr error
	exitNow  bool
	stopErr  error
	rec      *recorder
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Start(ctx context.Context) error {
	if s.startErr != nil || s.exitNow {
		return s.startErr
	}
	<-ctx.Done()
	return nil
}

func (s *stubService) Stop(context.Context) error {
	s.rec.add(s.name)
	return s.stopErr
}

func TestRunnerStopsEveryServiceInOrderOnCancel(t *testing.T) {
	rec := &recorder{}
	runner := NewRunner(
		&stubService{name: "http", rec: rec},
		&stubService{name: "session-scheduler", rec: rec},
		&stubService{name: "worker", rec: rec},
	)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	if err := runner.Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("cancelled run should return nil, got %v", err)
	}
	if len(rec.stopped) != 3 || rec.stopped[0] != "http" || rec.stopped[2] != "worker" {
		t.Fatalf("unexpected stop order: %v", rec.stopped)
	}
}

func TestRunnerReturnsFailingService(t *testing.T) {
	rec := &recorder{}
	errBind := errors.New("address already in use")
	runner := NewRunner(
		&stubService{name: "http", startErr: errBind, rec: rec},
		&stubService{name: "worker", rec: rec},
	)

	err := runner.Run(context.Background(), time.Second, nil)
	if !errors.Is(err, errBind) || err.Error() != "http: address already in use" {
		t.Fatalf("expected named start error, got %v", err)
	}
	if len(rec.stopped) != 2 {
		t.Fatalf("every service should be stopped, got %v", rec.stopped)
	}
}

func TestRunnerTreatsEarlyExitAsFailure(t *testing.T) {
	rec := &recorder{}
	runner := NewRunner(&stubService{name: "worker", exitNow: true, rec: rec})
	if err := runner.Run(context.Background(), time.Second, nil); !errors.Is(err, errServiceExited) {
		t.Fatalf("expected errServiceExited, got %v", err)
	}
}

func TestRunnerReportsStopErrors(t *testing.T) {
	rec := &recorder{}
	errDrain := errors.New("drain timeout")
	runner := NewRunner(
		&stubService{name: "http", stopErr: errDrain, rec: rec},
		&stubService{name: "worker", rec: rec},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := runner.Run(ctx, time.Second, nil); !errors.Is(err, errDrain) {
		t.Fatalf("stop failure should be reported, got %v", err)
	}
	if len(rec.stopped) != 2 {
		t.Fatalf("a failed stop must not skip the rest, got %v", rec.stopped)
	}
}

func TestRunnerRejectsNilService(t *testing.T) {
	if err := NewRunner(nil).Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("nil service should be rejected")
	}
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("empty runner should be rejected")
	}
}
