package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/voxloom/voxloom/pkg/queue"
)

func newLocal(t *testing.T, visibility time.Duration) *queue.LocalQueue {
	t.Helper()
	q, err := queue.NewLocal(queue.LocalOptions{
		InMemory:   true,
		Name:       "test",
		Visibility: visibility,
	})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestLocalQueueOrder(t *testing.T) {
	ctx := context.Background()
	q := newLocal(t, time.Minute)

	for i := 0; i < 5; i++ {
		if err := q.Send(ctx, []byte(fmt.Sprintf("msg-%d", i))); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	msgs, err := q.Receive(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	for i, m := range msgs {
		if want := fmt.Sprintf("msg-%d", i); string(m.Body) != want {
			t.Errorf("msgs[%d] = %q, want %q", i, m.Body, want)
		}
	}
}

func TestLocalQueueAckRemoves(t *testing.T) {
	ctx := context.Background()
	q := newLocal(t, 20*time.Millisecond)

	if err := q.Send(ctx, []byte("once")); err != nil {
		t.Fatal(err)
	}
	msgs, err := q.Receive(ctx, 1, 0)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("Receive: %v, %d msgs", err, len(msgs))
	}
	if err := q.Ack(ctx, msgs[0]); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	msgs, err = q.Receive(ctx, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("acked message redelivered: %q", msgs[0].Body)
	}
}

func TestLocalQueueRedeliversUnacked(t *testing.T) {
	ctx := context.Background()
	q := newLocal(t, 20*time.Millisecond)

	if err := q.Send(ctx, []byte("retry me")); err != nil {
		t.Fatal(err)
	}
	first, err := q.Receive(ctx, 1, 0)
	if err != nil || len(first) != 1 {
		t.Fatalf("first receive: %v, %d msgs", err, len(first))
	}

	// In flight: invisible until the lease expires.
	hidden, err := q.Receive(ctx, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hidden) != 0 {
		t.Fatal("in-flight message visible before lease expiry")
	}

	time.Sleep(50 * time.Millisecond)
	second, err := q.Receive(ctx, 1, 0)
	if err != nil || len(second) != 1 {
		t.Fatalf("redelivery: %v, %d msgs", err, len(second))
	}
	if second[0].ID != first[0].ID {
		t.Errorf("redelivered ID = %s, want %s", second[0].ID, first[0].ID)
	}
	if second[0].Receipt == first[0].Receipt {
		t.Error("redelivery reused the receipt")
	}
}

func TestLocalQueueSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	q, err := queue.NewLocal(queue.LocalOptions{Dir: dir, Name: "persist"})
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Send(ctx, []byte("durable")); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}

	q2, err := queue.NewLocal(queue.LocalOptions{Dir: dir, Name: "persist"})
	if err != nil {
		t.Fatal(err)
	}
	defer q2.Close()

	msgs, err := q2.Receive(ctx, 1, 0)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("after reopen: %v, %d msgs", err, len(msgs))
	}
	if string(msgs[0].Body) != "durable" {
		t.Errorf("body = %q", msgs[0].Body)
	}
	// New sends continue the sequence past the survivor.
	if err := q2.Send(ctx, []byte("later")); err != nil {
		t.Fatal(err)
	}
}

func TestSynthesizeRequestRoundTrip(t *testing.T) {
	in := queue.SynthesizeRequest{
		PodcastConfigID: "cfg-1",
		PodcastID:       "pod-1",
		EpisodeID:       "ep-1",
		ScriptURL:       "transcripts/script_20260801.txt",
		DynamicConfig: queue.DynamicConfig{
			LanguageCode:   "he",
			Language:       "Hebrew",
			PodcastFormat:  "multi_speaker",
			Speaker1Role:   "Host",
			Speaker1Gender: "male",
			Speaker1Voice:  "Alnilam",
			Speaker2Role:   "Market Analyst",
			Speaker2Gender: "female",
			Speaker2Voice:  "Aoede",
		},
	}
	body, err := queue.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	var out queue.SynthesizeRequest
	if err := queue.Decode(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.EpisodeID != "ep-1" || out.DynamicConfig.Speaker1Voice != "Alnilam" {
		t.Fatalf("round trip lost data: %+v", out)
	}
}
