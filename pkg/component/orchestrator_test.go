package component

import (
	"context"
	"errors"
	"testing"
)

type fakeComponent struct {
	*Base
	log      *[]string
	startErr error
	stopErr  error
}

func newFake(name string, log *[]string) *fakeComponent {
	return &fakeComponent{Base: NewBase(name), log: log}
}

func (f *fakeComponent) Start(ctx context.Context) error {
	*f.log = append(*f.log, "start "+f.Name())
	if f.startErr != nil {
		return f.startErr
	}
	f.StartContext(ctx)
	f.Go(func() { <-f.Ctx.Done() })
	return nil
}

func (f *fakeComponent) Stop(context.Context) error {
	*f.log = append(*f.log, "stop "+f.Name())
	f.StopContext()
	return f.stopErr
}

func TestOrchestrator_Order(t *testing.T) {
	var log []string
	o := NewOrchestrator()
	o.Register(newFake("a", &log))
	o.Register(newFake("b", &log))

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"start a", "start b", "stop b", "stop a"}
	if len(log) != len(want) {
		t.Fatalf("got %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("got %v, want %v", log, want)
		}
	}
}

func TestOrchestrator_StartFailureStopsStarted(t *testing.T) {
	var log []string
	boom := errors.New("boom")

	failing := newFake("b", &log)
	failing.startErr = boom

	o := NewOrchestrator()
	o.Register(newFake("a", &log))
	o.Register(failing)
	o.Register(newFake("c", &log))

	err := o.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}

	want := []string{"start a", "start b", "stop a"}
	if len(log) != len(want) {
		t.Fatalf("got %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("got %v, want %v", log, want)
		}
	}

	if err := o.Stop(context.Background()); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestOrchestrator_StopJoinsErrors(t *testing.T) {
	var log []string
	errA, errB := errors.New("a failed"), errors.New("b failed")

	a, b := newFake("a", &log), newFake("b", &log)
	a.stopErr, b.stopErr = errA, errB

	o := NewOrchestrator()
	o.Register(a)
	o.Register(b)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := o.Stop(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("got %v, want both errors", err)
	}
}

func TestBase_Lifecycle(t *testing.T) {
	b := NewBase("worker")
	if b.Running() {
		t.Fatal("running before start")
	}

	b.StartContext(context.Background())
	if !b.Running() {
		t.Fatal("not running after start")
	}

	done := make(chan struct{})
	b.Go(func() { panic("worker failed") })
	b.Go(func() {
		<-b.Ctx.Done()
		close(done)
	})

	b.StopContext()
	<-done
	if b.Running() {
		t.Error("still running after stop")
	}
}
