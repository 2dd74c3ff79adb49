package chunk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/voxloom/voxloom/pkg/pipeline"
	"github.com/voxloom/voxloom/pkg/tts"
	"github.com/voxloom/voxloom/pkg/wav"
)

// DefaultMaxWorkers bounds parallel synthesis. Two workers saturate the
// default 9-calls-per-minute TTS budget without tripping remote limits.
const DefaultMaxWorkers = 2

// DefaultMaxRetries is the per-chunk synthesis retry budget.
const DefaultMaxRetries = 3

// breakerThreshold trips the circuit after this many consecutive
// deferrable outcomes across all workers.
const breakerThreshold = 2

// SynthesizeFunc renders one chunk of script text.
type SynthesizeFunc func(ctx context.Context, chunkText string) (*tts.Result, error)

// Rendered is one successfully synthesized chunk.
type Rendered struct {
	Index    int
	WAV      []byte
	Duration float64
}

// Manager drives chunk synthesis for one synthesizer invocation. The
// circuit breaker is scoped to the Manager; persistent back-off across
// invocations is the queue's job via redelivery delay.
type Manager struct {
	synthesize SynthesizeFunc
	maxWorkers int
	maxRetries int

	mu          sync.Mutex
	consecutive int
}

// NewManager creates a Manager over a synthesis function.
func NewManager(synthesize SynthesizeFunc, maxWorkers, maxRetries int) *Manager {
	if maxWorkers < 1 {
		maxWorkers = DefaultMaxWorkers
	}
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	return &Manager{synthesize: synthesize, maxWorkers: maxWorkers, maxRetries: maxRetries}
}

// noteOutcome updates the consecutive-deferral counter and reports whether
// the breaker just tripped. Successes and non-deferrable failures reset it.
func (m *Manager) noteOutcome(deferrable bool) (tripped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !deferrable {
		m.consecutive = 0
		return false
	}
	m.consecutive++
	return m.consecutive >= breakerThreshold
}

// Run synthesizes all chunks in parallel and returns them in index order.
//
// Any chunk failing all retries fails the whole run; partial results are
// never returned. Two consecutive deferrable outcomes trip the breaker,
// aborting outstanding work and returning a deferrable error so the caller
// re-queues the episode.
func (m *Manager) Run(ctx context.Context, chunks []string) ([]Rendered, error) {
	if len(chunks) == 0 {
		return nil, pipeline.Validation("no chunks to synthesize")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := min(len(chunks), m.maxWorkers)
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		resMu    sync.Mutex
		rendered []Rendered
		failures []error
	)
	fail := func(err error) {
		resMu.Lock()
		failures = append(failures, err)
		resMu.Unlock()
		cancel()
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res, err := tts.SynthesizeChunkWithRetry(runCtx,
					func(c context.Context) (*tts.Result, error) {
						return m.synthesize(c, chunks[idx])
					},
					idx, m.maxRetries,
					func(r *tts.Result) error {
						return ValidateRendered(r.WAV, r.Duration)
					})
				if err != nil {
					deferrable := pipeline.IsDeferrable(err)
					if m.noteOutcome(deferrable) {
						slog.Warn("circuit breaker tripped, aborting synthesis run", "chunk", idx)
					}
					fail(fmt.Errorf("chunk %d: %w", idx, err))
					continue
				}
				m.noteOutcome(false)
				resMu.Lock()
				rendered = append(rendered, Rendered{Index: idx, WAV: res.WAV, Duration: res.Duration})
				resMu.Unlock()
			}
		}()
	}

	for i := range chunks {
		select {
		case jobs <- i:
		case <-runCtx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	if len(failures) > 0 {
		// Surface a deferrable failure over a fatal one: re-queueing
		// beats failing when both happened in the same run. Cancellation
		// fallout from our own abort ranks last.
		for _, err := range failures {
			if pipeline.IsDeferrable(err) {
				return nil, err
			}
		}
		for _, err := range failures {
			if !errors.Is(err, context.Canceled) {
				return nil, err
			}
		}
		return nil, failures[0]
	}

	sort.Slice(rendered, func(i, j int) bool { return rendered[i].Index < rendered[j].Index })
	return rendered, nil
}

// RunSequential synthesizes chunks one at a time. Retained for operator
// tooling; episode recovery does not use it, since a chunk that failed all
// retries fails the episode rather than degrading it.
func (m *Manager) RunSequential(ctx context.Context, chunks []string) ([]Rendered, error) {
	var rendered []Rendered
	for idx, text := range chunks {
		res, err := tts.SynthesizeChunkWithRetry(ctx,
			func(c context.Context) (*tts.Result, error) {
				return m.synthesize(c, text)
			},
			idx, m.maxRetries,
			func(r *tts.Result) error {
				return ValidateRendered(r.WAV, r.Duration)
			})
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", idx, err)
		}
		rendered = append(rendered, Rendered{Index: idx, WAV: res.WAV, Duration: res.Duration})
	}
	return rendered, nil
}

// Stitch concatenates rendered chunks (already index-sorted by Run) into
// one WAV and returns the file and its total duration in seconds.
func Stitch(rendered []Rendered) ([]byte, float64, error) {
	files := make([][]byte, len(rendered))
	for i, r := range rendered {
		files[i] = r.WAV
	}
	out, err := wav.Concat(files)
	if err != nil {
		return nil, 0, err
	}
	dur, err := wav.Duration(out)
	if err != nil {
		return nil, 0, err
	}
	return out, dur, nil
}
