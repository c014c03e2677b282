package writepolicy

import (
	"context"
	"strings"
	"sync"

	"github.com/campusapp/schedule-cache/storage"
)

type opKind uint8

const (
	opSet opKind = iota
	opRemove
	opRemovePrefix
)

// writeReq represents one pending mutation that needs to be sent to the backend.
type writeReq struct {
	ctx   context.Context
	kind  opKind
	key   string
	value []byte
	seq   uint64
}

// pendingKey is the latest queued Set or Remove of one key.
type pendingKey struct {
	seq     uint64
	value   []byte
	removed bool
}

type pendingPrefix struct {
	seq    uint64
	prefix string
}

/*
WriteBackPolicy applies mutations to the backend from a single background worker.

One worker keeps the mutations in submission order, so a Remove queued after a Set
always wins. If the queue is full the caller blocks until there is room. Mutations are
never dropped: the backend is the offline copy.

Until the worker has applied a mutation, Pending reports it, so readers that fall
through to the backend can see what the backend will hold once the queue drains.
*/
type WriteBackPolicy struct {
	backend storage.Backend

	// ch holds pending mutations. Buffering allows bursts without blocking readers.
	ch chan writeReq

	// onError receives backend failures from the worker, which has no caller to return them to.
	onError func(key string, err error)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	pendMu   sync.Mutex
	seq      uint64
	keys     map[string]pendingKey
	prefixes []pendingPrefix
}

// NewWriteBackPolicy creates a write-back policy and starts its worker.
// onError may be nil.
func NewWriteBackPolicy(backend storage.Backend, buffer int, onError func(key string, err error)) *WriteBackPolicy {
	if buffer <= 0 {
		buffer = 1
	}
	if onError == nil {
		onError = func(string, error) {}
	}
	w := &WriteBackPolicy{
		backend: backend,
		ch:      make(chan writeReq, buffer),
		onError: onError,
		keys:    make(map[string]pendingKey),
	}

	w.wg.Add(1)
	go w.worker()

	return w
}

func (w *WriteBackPolicy) OnWrite(ctx context.Context, key string, value []byte) error {
	return w.submit(writeReq{ctx: ctx, kind: opSet, key: key, value: value})
}

func (w *WriteBackPolicy) OnRemove(ctx context.Context, key string) error {
	return w.submit(writeReq{ctx: ctx, kind: opRemove, key: key})
}

func (w *WriteBackPolicy) OnRemovePrefix(ctx context.Context, prefix string) error {
	return w.submit(writeReq{ctx: ctx, kind: opRemovePrefix, key: prefix})
}

func (w *WriteBackPolicy) submit(req writeReq) error {
	// The caller may be gone by the time the worker runs.
	req.ctx = context.WithoutCancel(req.ctx)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return storage.ErrClosed
	}

	w.track(&req)
	w.ch <- req
	return nil
}

// track records req as pending and stamps it with its sequence number.
func (w *WriteBackPolicy) track(req *writeReq) {
	w.pendMu.Lock()
	defer w.pendMu.Unlock()

	w.seq++
	req.seq = w.seq
	switch req.kind {
	case opSet:
		w.keys[req.key] = pendingKey{seq: req.seq, value: req.value}
	case opRemove:
		w.keys[req.key] = pendingKey{seq: req.seq, removed: true}
	case opRemovePrefix:
		// Earlier mutations under the prefix are superseded by the removal.
		for k := range w.keys {
			if strings.HasPrefix(k, req.key) {
				delete(w.keys, k)
			}
		}
		w.prefixes = append(w.prefixes, pendingPrefix{seq: req.seq, prefix: req.key})
	}
}

// settle forgets req once the worker is done with it, unless a later mutation replaced it.
func (w *WriteBackPolicy) settle(req writeReq) {
	w.pendMu.Lock()
	defer w.pendMu.Unlock()

	if req.kind == opRemovePrefix {
		for i, p := range w.prefixes {
			if p.seq == req.seq {
				w.prefixes = append(w.prefixes[:i], w.prefixes[i+1:]...)
				break
			}
		}
		return
	}
	if p, ok := w.keys[req.key]; ok && p.seq == req.seq {
		delete(w.keys, req.key)
	}
}

/*
Pending reports a queued mutation of key that the backend does not reflect yet.

	ok=false              nothing pending, the backend is current
	ok=true, removed=true the key is about to be deleted
	ok=true, value        the key is about to hold value
*/
func (w *WriteBackPolicy) Pending(key string) (value []byte, removed, ok bool) {
	w.pendMu.Lock()
	defer w.pendMu.Unlock()

	// A pending Set or Remove of the key is always newer than any pending prefix
	// removal covering it, because queuing the prefix removal dropped older ones.
	if p, found := w.keys[key]; found {
		return p.value, p.removed, true
	}
	for _, p := range w.prefixes {
		if strings.HasPrefix(key, p.prefix) {
			return nil, true, true
		}
	}
	return nil, false, false
}

// worker drains the queue until Close.
func (w *WriteBackPolicy) worker() {
	defer w.wg.Done()

	for req := range w.ch {
		if err := w.apply(req); err != nil {
			w.onError(req.key, err)
		}
		w.settle(req)
	}
}

func (w *WriteBackPolicy) apply(req writeReq) error {
	switch req.kind {
	case opRemove:
		return w.backend.Remove(req.ctx, req.key)
	case opRemovePrefix:
		return w.backend.RemovePrefix(req.ctx, req.key)
	default:
		return w.backend.Set(req.ctx, req.key, req.value)
	}
}

/*
Close shuts down the write-back policy gracefully.
1. Stop accepting mutations
2. Wait for the worker to apply everything still queued

The backend itself is not closed; it belongs to whoever opened it.
*/
func (w *WriteBackPolicy) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	w.wg.Wait()
	return nil
}
