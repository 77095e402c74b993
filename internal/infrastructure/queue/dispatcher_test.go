package queue

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/99minutos/account-recovery/internal/core/ports"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []ports.ResetNotice
	err     error
	block   chan struct{}
}

func (r *recordingNotifier) NotifyResetIssued(ctx context.Context, n ports.ResetNotice) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return r.err
}

func (r *recordingNotifier) snapshot() []ports.ResetNotice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.ResetNotice(nil), r.notices...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestDispatcher_DeliversInOrderPerEmail(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	n := &recordingNotifier{}
	d := NewDispatcher(3, n, zerolog.Nop())
	d.Start(ctx)

	for _, tok := range []string{"t1", "t2", "t3"} {
		d.Enqueue(ports.ResetNotice{Email: "a@x.com", Token: tok})
	}
	waitFor(t, func() bool { return len(n.snapshot()) == 3 })

	got := n.snapshot()
	for i, want := range []string{"t1", "t2", "t3"} {
		if got[i].Token != want {
			t.Fatalf("notice %d: expected %s, got %s", i, want, got[i].Token)
		}
	}

	cancel()
	d.Wait()
}

func TestDispatcher_ShardIndexStable(t *testing.T) {
	d := NewDispatcher(8, &recordingNotifier{}, zerolog.Nop())
	first := d.shardIndex("a@x.com")
	for i := 0; i < 10; i++ {
		if got := d.shardIndex("a@x.com"); got != first {
			t.Fatalf("shard changed: %d != %d", got, first)
		}
	}
	if first < 0 || first >= 8 {
		t.Fatalf("shard out of range: %d", first)
	}
}

func TestDispatcher_DefaultWorkers(t *testing.T) {
	d := NewDispatcher(0, &recordingNotifier{}, zerolog.Nop())
	if len(d.workers) != defaultWorkers {
		t.Fatalf("expected %d workers, got %d", defaultWorkers, len(d.workers))
	}
}

func TestDispatcher_NotifierErrorKeepsWorkerAlive(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	n := &recordingNotifier{err: errors.New("smtp down")}
	d := NewDispatcher(1, n, zerolog.Nop())
	d.Start(ctx)

	d.Enqueue(ports.ResetNotice{Email: "a@x.com", Token: "t1"})
	d.Enqueue(ports.ResetNotice{Email: "a@x.com", Token: "t2"})
	waitFor(t, func() bool { return len(n.snapshot()) == 2 })

	cancel()
	d.Wait()
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	n := &recordingNotifier{block: make(chan struct{})}
	d := NewDispatcher(1, n, zerolog.Nop())
	d.Start(ctx)

	done := make(chan struct{})
	go func() {
		// One notice is held by the blocked worker, the rest fill and overflow the buffer.
		for i := 0; i < channelBuffer+10; i++ {
			d.Enqueue(ports.ResetNotice{Email: "a@x.com", Token: "t"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Enqueue blocked on a full queue")
	}

	cancel()
	d.Wait()
}

func TestLogNotifier_RedactsToken(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	err := n.NotifyResetIssued(context.Background(), ports.ResetNotice{
		Email: "a@x.com",
		Token: "abcdefghijklmnop",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "abcdefghijklmnop") {
		t.Fatalf("token leaked into log: %s", out)
	}
	if !strings.Contains(out, "abcd****") {
		t.Fatalf("expected redacted prefix, got %s", out)
	}
}
