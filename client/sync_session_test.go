package client_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/client"
	"github.com/momentics/hioload-nio/fake"
)

func encodeString(s string) ([]byte, error) { return []byte(s), nil }

// awaitPending waits until n requests are queued on ss.
func awaitPending(t *testing.T, ss *client.SyncSession[string], n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for ss.Pending() < n {
		if time.Now().After(deadline) {
			t.Fatalf("pending = %d, want %d", ss.Pending(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSyncSessionFIFO(t *testing.T) {
	fs := fake.NewSession[string](1, encodeString)
	ss := client.NewSyncSession[string](fs, time.Second)

	type result struct {
		reply string
		err   error
	}
	results := make([]chan result, 3)
	for i, req := range []string{"a", "b", "c"} {
		results[i] = make(chan result, 1)
		go func(i int, req string) {
			r, err := ss.SendWithResponse(req)
			results[i] <- result{r, err}
		}(i, req)
		// serialize the sends so wire order is a, b, c
		awaitPending(t, ss, i+1)
	}

	for _, reply := range []string{"A", "B", "C"} {
		if !ss.NotifySyncMessage(reply) {
			t.Fatalf("reply %q not consumed", reply)
		}
	}
	for i, want := range []string{"A", "B", "C"} {
		r := <-results[i]
		if r.err != nil || r.reply != want {
			t.Errorf("request %d got %q, %v; want %q", i, r.reply, r.err, want)
		}
	}
	if got := fs.Messages(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("written %q", got)
	}
	if ss.NotifySyncMessage("unsolicited") {
		t.Error("message consumed with no waiter")
	}
}

func TestSyncSessionTimeoutDropsLateReply(t *testing.T) {
	fs := fake.NewSession[string](1, encodeString)
	ss := client.NewSyncSession[string](fs, time.Second)

	_, err := ss.SendWithResponseTimeout("slow", 20*time.Millisecond)
	if !errors.Is(err, api.ErrOperationTimeout) {
		t.Fatalf("err = %v, want ErrOperationTimeout", err)
	}

	var wg sync.WaitGroup
	var got string
	var gotErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, gotErr = ss.SendWithResponse("next")
	}()
	awaitPending(t, ss, 2)

	// the late reply to "slow" is swallowed, not handed to "next"
	if !ss.NotifySyncMessage("slow-reply") {
		t.Fatal("late reply not consumed")
	}
	ss.NotifySyncMessage("next-reply")
	wg.Wait()
	if gotErr != nil || got != "next-reply" {
		t.Errorf("got %q, %v", got, gotErr)
	}
}

func TestSyncSessionWriteError(t *testing.T) {
	fs := fake.NewSession[string](1, encodeString)
	boom := errors.New("boom")
	fs.SetWriteError(boom)
	ss := client.NewSyncSession[string](fs, time.Second)
	if _, err := ss.SendWithResponse("x"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if ss.Pending() != 0 {
		t.Errorf("failed send left a waiter")
	}
	if err := ss.SendWithoutResponse("y"); !errors.Is(err, boom) {
		t.Errorf("SendWithoutResponse err = %v", err)
	}
}

func TestSyncSessionFail(t *testing.T) {
	fs := fake.NewSession[string](1, encodeString)
	ss := client.NewSyncSession[string](fs, 5*time.Second)
	errc := make(chan error, 1)
	go func() {
		_, err := ss.SendWithResponse("x")
		errc <- err
	}()
	awaitPending(t, ss, 1)
	ss.Fail(api.ErrSessionClosed)
	if err := <-errc; !errors.Is(err, api.ErrSessionClosed) {
		t.Errorf("waiter err = %v", err)
	}
	if _, err := ss.SendWithResponse("y"); !errors.Is(err, api.ErrSessionClosed) {
		t.Errorf("send after Fail err = %v", err)
	}
}

func TestSyncProcessorRouting(t *testing.T) {
	var unsolicited []string
	p := client.NewSyncProcessor[string](time.Second, func(ss *client.SyncSession[string], msg string) error {
		unsolicited = append(unsolicited, msg)
		return nil
	})
	fs := fake.NewSession[string](7, encodeString)
	ms := p.InitSession(fs)

	if err := p.Process(ms, "push"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	done := make(chan string, 1)
	go func() {
		r, _ := ms.SendWithResponse("q")
		done <- r
	}()
	awaitPending(t, ms.(*client.SyncSession[string]), 1)
	p.Process(ms, "answer")
	if r := <-done; r != "answer" {
		t.Errorf("reply = %q", r)
	}
	if len(unsolicited) != 1 || unsolicited[0] != "push" {
		t.Errorf("handler saw %q", unsolicited)
	}
}

func TestSyncProcessorCloseSessionReleasesWaiters(t *testing.T) {
	p := client.NewSyncProcessor[string](time.Minute, nil)
	fs := fake.NewSession[string](7, encodeString)
	ms := p.InitSession(fs)
	ss := ms.(*client.SyncSession[string])

	done := make(chan error, 1)
	go func() {
		_, err := ss.SendWithResponse("ping")
		done <- err
	}()
	awaitPending(t, ss, 1)

	p.CloseSession(ms)
	select {
	case err := <-done:
		if !errors.Is(err, api.ErrSessionClosed) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released")
	}
	if _, err := ss.SendWithResponse("again"); !errors.Is(err, api.ErrSessionClosed) {
		t.Errorf("send after close: %v", err)
	}
}
