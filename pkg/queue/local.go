package queue

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// localPollEvery is how often an idle Receive re-checks the store while
// long-polling.
const localPollEvery = 100 * time.Millisecond

// DefaultVisibility is how long a received message stays invisible before
// the local queue redelivers it.
const DefaultVisibility = 30 * time.Second

// envelope is the stored form of a local queue message.
type envelope struct {
	ID         string    `msgpack:"id"`
	Body       []byte    `msgpack:"body"`
	Attempts   int       `msgpack:"attempts"`
	EnqueuedAt time.Time `msgpack:"enqueued_at"`
}

// LocalQueue implements Queue on a BadgerDB keyspace, for development and
// tests where SQS is unavailable. Messages are stored under monotonically
// increasing sequence keys so iteration order is enqueue order; leases for
// in-flight deliveries are held in memory, so redelivery-after-crash falls
// back to immediate visibility.
type LocalQueue struct {
	db         *badger.DB
	prefix     []byte
	visibility time.Duration

	mu     sync.Mutex
	seq    uint64
	leases map[string]lease // receipt -> lease
}

type lease struct {
	key      []byte
	deadline time.Time
}

// LocalOptions configures a LocalQueue.
type LocalOptions struct {
	// Dir is the BadgerDB directory. Ignored when InMemory is set.
	Dir string
	// InMemory runs badger without disk persistence. Useful for tests.
	InMemory bool
	// Name namespaces this queue's keys within the store. Required.
	Name string
	// Visibility overrides DefaultVisibility when positive.
	Visibility time.Duration
}

// NewLocal opens (or creates) a local queue.
func NewLocal(opts LocalOptions) (*LocalQueue, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("queue: LocalOptions.Name is required")
	}
	if !opts.InMemory && opts.Dir == "" {
		return nil, fmt.Errorf("queue: LocalOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("queue: open local store: %w", err)
	}
	q := &LocalQueue{
		db:         db,
		prefix:     []byte("q/" + opts.Name + "/"),
		visibility: opts.Visibility,
		leases:     make(map[string]lease),
	}
	if q.visibility <= 0 {
		q.visibility = DefaultVisibility
	}
	if err := q.restoreSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return q, nil
}

// restoreSeq continues the key sequence after the highest persisted key.
func (q *LocalQueue) restoreSeq() error {
	return q.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = q.prefix
		iterOpts.Reverse = true
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		// Seek to the end of the prefix range.
		seekTo := append(append([]byte{}, q.prefix...), 0xff)
		it.Seek(seekTo)
		if it.ValidForPrefix(q.prefix) {
			k := it.Item().Key()
			q.seq = binary.BigEndian.Uint64(k[len(q.prefix):])
		}
		return nil
	})
}

func (q *LocalQueue) key(seq uint64) []byte {
	k := make([]byte, len(q.prefix)+8)
	copy(k, q.prefix)
	binary.BigEndian.PutUint64(k[len(q.prefix):], seq)
	return k
}

func (q *LocalQueue) Send(_ context.Context, body []byte) error {
	env := envelope{
		ID:         uuid.NewString(),
		Body:       body,
		EnqueuedAt: time.Now().UTC(),
	}
	raw, err := msgpack.Marshal(&env)
	if err != nil {
		return fmt.Errorf("queue: encode envelope: %w", err)
	}

	q.mu.Lock()
	q.seq++
	k := q.key(q.seq)
	q.mu.Unlock()

	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, raw)
	})
	if err != nil {
		return fmt.Errorf("queue: local send: %w", err)
	}
	return nil
}

func (q *LocalQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	if max < 1 {
		max = 1
	}
	deadline := time.Now().Add(wait)
	for {
		msgs, err := q.receiveOnce(max)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(localPollEvery):
		}
	}
}

func (q *LocalQueue) receiveOnce(max int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	inFlight := make(map[string]bool, len(q.leases))
	for receipt, l := range q.leases {
		if now.After(l.deadline) {
			delete(q.leases, receipt) // expired, message visible again
			continue
		}
		inFlight[string(l.key)] = true
	}

	var msgs []Message
	err := q.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = q.prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(q.prefix); it.ValidForPrefix(q.prefix) && len(msgs) < max; it.Next() {
			item := it.Item()
			if inFlight[string(item.Key())] {
				continue
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var env envelope
			if err := msgpack.Unmarshal(raw, &env); err != nil {
				return fmt.Errorf("decode envelope: %w", err)
			}
			receipt := uuid.NewString()
			q.leases[receipt] = lease{
				key:      item.KeyCopy(nil),
				deadline: now.Add(q.visibility),
			}
			msgs = append(msgs, Message{ID: env.ID, Receipt: receipt, Body: env.Body})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("queue: local receive: %w", err)
	}
	return msgs, nil
}

func (q *LocalQueue) Ack(_ context.Context, msg Message) error {
	q.mu.Lock()
	l, ok := q.leases[msg.Receipt]
	if ok {
		delete(q.leases, msg.Receipt)
	}
	q.mu.Unlock()
	if !ok {
		// Lease expired and the message may be in flight elsewhere;
		// treat as already handled.
		return nil
	}
	err := q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(l.key)
	})
	if err != nil {
		return fmt.Errorf("queue: local ack %s: %w", msg.ID, err)
	}
	return nil
}

// Close releases the underlying store.
func (q *LocalQueue) Close() error {
	return q.db.Close()
}

var _ Queue = (*LocalQueue)(nil)
