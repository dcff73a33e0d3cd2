package transport

import (
	"sync"
	"time"
)

// Fake is an in-memory Transport for driver unit tests and examples. It
// never touches real hardware; completions are queued by test code via
// Complete and drained by HandleEvents, preserving the "dispatch on
// HandleEvents only" contract real transports must honor (spec.md §5).
type Fake struct {
	mu        sync.Mutex
	pending   []fakeCompletion
	pollfds   []PollFD
	addCb     PollFDNotifier
	removeCb  PollFDNotifier
	nextID    int
	cancelled map[int]bool
	inflightMap map[int]inflightEntry
}

type fakeCompletion struct {
	id     int
	status TransferStatus
	data   []byte
	n      int
	err    error
	cb     CompletionFunc
}

// NewFake returns an empty Fake transport.
func NewFake() *Fake {
	return &Fake{cancelled: make(map[int]bool)}
}

func (f *Fake) SubmitTransfer(_ TransferKind, _ uint8, buf []byte, _ time.Duration, cb CompletionFunc) (func(), error) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.mu.Unlock()
	// Queue nothing yet; test code calls Complete to simulate the device's
	// response. Store buf so Complete can copy into it for IN transfers.
	f.mu.Lock()
	f.inflight(id, buf, cb)
	f.mu.Unlock()
	cancel := func() {
		f.mu.Lock()
		f.cancelled[id] = true
		f.mu.Unlock()
	}
	return cancel, nil
}

type inflightEntry struct {
	buf []byte
	cb  CompletionFunc
}

func (f *Fake) inflight(id int, buf []byte, cb CompletionFunc) {
	if f.inflightMap == nil {
		f.inflightMap = make(map[int]inflightEntry)
	}
	f.inflightMap[id] = inflightEntry{buf: buf, cb: cb}
}

// Complete simulates a transfer completion for the oldest still-pending
// submission. It is a test helper, not part of the Transport interface.
func (f *Fake) Complete(status TransferStatus, payload []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	oldest := -1
	for id := range f.inflightMap {
		if f.cancelled[id] {
			delete(f.inflightMap, id)
			continue
		}
		if oldest < 0 || id < oldest {
			oldest = id
		}
	}
	if oldest < 0 {
		return
	}
	entry := f.inflightMap[oldest]
	n := copy(entry.buf, payload)
	f.pending = append(f.pending, fakeCompletion{id: oldest, status: status, data: entry.buf, n: n, err: err, cb: entry.cb})
	delete(f.inflightMap, oldest)
}

func (f *Fake) HandleEvents(_ time.Duration) (int, error) {
	f.mu.Lock()
	due := f.pending
	f.pending = nil
	f.mu.Unlock()

	for _, c := range due {
		c.cb(c.status, c.data, c.n, c.err)
	}
	return len(due), nil
}

func (f *Fake) PollFDs() []PollFD { return f.pollfds }

func (f *Fake) SetPollFDNotifiers(add, remove PollFDNotifier) {
	f.addCb = add
	f.removeCb = remove
}

func (f *Fake) Close() error { return nil }

var _ Transport = (*Fake)(nil)
