//go:build linux
// +build linux

package reactor_test

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/reactor"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newSelector(t *testing.T) *reactor.Selector[string] {
	t.Helper()
	sel, err := reactor.NewSelector[string](16)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	t.Cleanup(func() { sel.Close() })
	return sel
}

func TestSelectorReadable(t *testing.T) {
	sel := newSelector(t)
	a, b := socketPair(t)

	if err := sel.Register(a, reactor.InterestRead, "conn-a"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := unix.Write(b, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	ready, err := sel.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(ready) != 1 {
		t.Fatalf("expected 1 ready entry, got %d", len(ready))
	}
	if ready[0].Fd != a || ready[0].Attachment != "conn-a" || !ready[0].Readable {
		t.Errorf("unexpected ready entry: %+v", ready[0])
	}
}

func TestSelectorRegisterTwice(t *testing.T) {
	sel := newSelector(t)
	a, _ := socketPair(t)
	if err := sel.Register(a, reactor.InterestNone, "x"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := sel.Register(a, reactor.InterestNone, "x"); !errors.Is(err, api.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestSelectorModifyToWrite(t *testing.T) {
	sel := newSelector(t)
	a, _ := socketPair(t)

	if err := sel.Register(a, reactor.InterestNone, "a"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ready, err := sel.Wait(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(ready) != 0 {
		t.Fatalf("expected no events with zero interest, got %d", len(ready))
	}

	if err := sel.Modify(a, reactor.InterestWrite); err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if got, _ := sel.Interest(a); got != reactor.InterestWrite {
		t.Errorf("interest = %v, want write", got)
	}
	ready, err = sel.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(ready) != 1 || !ready[0].Writable {
		t.Fatalf("expected a writable event, got %+v", ready)
	}
}

func TestSelectorModifyUnknown(t *testing.T) {
	sel := newSelector(t)
	if err := sel.Modify(12345, reactor.InterestRead); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSelectorUnregister(t *testing.T) {
	sel := newSelector(t)
	a, b := socketPair(t)

	sel.Register(a, reactor.InterestRead, "a")
	if err := sel.Unregister(a); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if sel.Len() != 0 {
		t.Errorf("expected no keys, got %d", sel.Len())
	}
	unix.Write(b, []byte("x"))
	ready, err := sel.Wait(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(ready) != 0 {
		t.Errorf("unregistered fd still reported: %+v", ready)
	}
	// unknown descriptors are ignored
	if err := sel.Unregister(a); err != nil {
		t.Errorf("second Unregister: %v", err)
	}
}

func TestSelectorWakeup(t *testing.T) {
	sel := newSelector(t)
	done := make(chan time.Duration, 1)
	go func() {
		start := time.Now()
		sel.Wait(10 * time.Second)
		done <- time.Since(start)
	}()
	time.Sleep(20 * time.Millisecond)
	if err := sel.Wakeup(); err != nil {
		t.Fatalf("Wakeup: %v", err)
	}
	select {
	case d := <-done:
		if d > 5*time.Second {
			t.Errorf("Wait returned after %v", d)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Wakeup")
	}
}

func TestSelectorSubmitRunsOnOwner(t *testing.T) {
	sel := newSelector(t)
	ran := make(chan struct{})
	if err := sel.Submit(func() { close(ran) }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-ran:
		t.Fatal("task ran before Wait")
	default:
	}
	// first Wait returns on the wakeup, the task runs at its start
	if _, err := sel.Wait(time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	select {
	case <-ran:
	default:
		t.Fatal("task did not run")
	}
}

func TestSelectorSubmitRecoversPanic(t *testing.T) {
	sel := newSelector(t)
	var got any
	sel.OnPanic = func(v any) { got = v }
	sel.Submit(func() { panic("boom") })
	sel.Wait(0)
	if got != "boom" {
		t.Errorf("OnPanic got %v", got)
	}
}

func TestSelectorClosed(t *testing.T) {
	sel, err := reactor.NewSelector[string](4)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	pending := false
	sel.Submit(func() { pending = true })
	if err := sel.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !pending {
		t.Error("queued task not run on Close")
	}
	if err := sel.Submit(func() {}); !errors.Is(err, api.ErrSelectorClosed) {
		t.Errorf("Submit after Close: %v", err)
	}
	if err := sel.Wakeup(); !errors.Is(err, api.ErrSelectorClosed) {
		t.Errorf("Wakeup after Close: %v", err)
	}
	inline := false
	sel.Exec(func() { inline = true })
	if !inline {
		t.Error("Exec did not run inline on a closed selector")
	}
	if err := sel.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSelectorCloseDetachesRegistrations(t *testing.T) {
	sel, err := reactor.NewSelector[string](4)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	a, b := socketPair(t)
	if err := sel.Register(a, reactor.InterestRead, "a"); err != nil {
		t.Fatalf("Register a: %v", err)
	}
	if err := sel.Register(b, reactor.InterestNone, "b"); err != nil {
		t.Fatalf("Register b: %v", err)
	}
	if err := sel.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got := map[string]bool{}
	for _, att := range sel.Detached() {
		got[att] = true
	}
	if len(got) != 2 || !got["a"] || !got["b"] {
		t.Errorf("Detached = %v", sel.Detached())
	}
	if n := sel.Len(); n != 0 {
		t.Errorf("Len after Close = %d", n)
	}

	// late tasks from other goroutines run inline and must not touch the
	// selector's state
	done := make(chan error, 1)
	go func() {
		var errs []error
		sel.Exec(func() {
			errs = append(errs, sel.Modify(a, reactor.InterestWrite))
			errs = append(errs, sel.Unregister(a))
			errs = append(errs, sel.Unregister(b))
		})
		for _, err := range errs {
			if err != nil {
				done <- err
				return
			}
		}
		done <- sel.Register(a, reactor.InterestRead, "again")
	}()
	if err := <-done; !errors.Is(err, api.ErrSelectorClosed) {
		t.Errorf("late registration: %v", err)
	}
}
