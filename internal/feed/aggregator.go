package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"propfeed/internal/listing"
	"propfeed/internal/model"
	"propfeed/internal/partition"
)

// Defaults for a new Aggregator.
const (
	DefaultPageSize = 10
	DefaultDebounce = 300 * time.Millisecond
)

// ErrClosed is returned by Refresh after Close.
var ErrClosed = errors.New("aggregator closed")

// PageSource fetches one page of raw catalog records.
type PageSource interface {
	FetchPage(ctx context.Context, page int) (model.Page, error)
}

// Stopper is a scheduled callback that can be cancelled.
type Stopper interface {
	Stop() bool
}

// TimerFunc schedules f to run after d.
type TimerFunc func(d time.Duration, f func()) Stopper

// Snapshot is a point-in-time copy of all buckets.
type Snapshot map[partition.Name]Bucket

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithPageSize sets the expected page length used to detect exhaustion.
func WithPageSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// WithDebounce sets the window within which LoadMore triggers coalesce.
func WithDebounce(d time.Duration) Option {
	return func(a *Aggregator) { a.debounce = d }
}

// WithTimerFunc replaces time.AfterFunc for the debounce timer.
func WithTimerFunc(fn TimerFunc) Option {
	return func(a *Aggregator) { a.afterFunc = fn }
}

// WithOnChange registers a listener called after every state change.
// It runs outside the aggregator's lock and must not block for long.
func WithOnChange(fn func(Snapshot)) Option {
	return func(a *Aggregator) { a.onChange = fn }
}

// Aggregator owns the sale, rent and featured buckets of one screen.
//
// Every fetch is tagged with the epoch current when it started; Refresh
// bumps the epoch so that responses from superseded fetches are dropped.
type Aggregator struct {
	src       PageSource
	log       *slog.Logger
	pageSize  int
	debounce  time.Duration
	afterFunc TimerFunc
	onChange  func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	buckets     map[partition.Name]Bucket
	page        int
	loaded      bool
	epoch       uint64
	inFlight    bool
	pending     Stopper
	debounceGen uint64
	closed      bool
}

// New creates an Aggregator with empty buckets.
func New(src PageSource, log *slog.Logger, opts ...Option) *Aggregator {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Aggregator{
		src:      src,
		log:      log,
		pageSize: DefaultPageSize,
		debounce: DefaultDebounce,
		afterFunc: func(d time.Duration, f func()) Stopper {
			return time.AfterFunc(d, f)
		},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.resetLocked()
	return a
}

// Refresh discards all buckets and fetches page 1. It may be called in any
// state; in-flight fetches started earlier are superseded.
func (a *Aggregator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.wg.Add(1)
	defer a.wg.Done()

	a.stopPendingLocked()
	a.epoch++
	epoch := a.epoch
	a.resetLocked()
	a.setInFlightLocked(true)
	a.mu.Unlock()

	a.log.Debug("refresh", "epoch", epoch)
	a.notify()
	return a.fetch(ctx, epoch, 1)
}

// LoadMore schedules the next page. It reports false without side effects
// when a fetch is in flight, the feed is exhausted or the aggregator is
// closed. Calls within the debounce window coalesce into one fetch.
func (a *Aggregator) LoadMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.inFlight || a.exhaustedLocked() {
		return false
	}

	if a.pending != nil && a.pending.Stop() {
		a.wg.Done()
	}
	a.debounceGen++
	gen := a.debounceGen
	a.wg.Add(1)
	a.pending = a.afterFunc(a.debounce, func() { a.fire(gen) })
	return true
}

// Bucket returns a copy of the named bucket.
func (a *Aggregator) Bucket(name partition.Name) Bucket {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buckets[name].clone()
}

// Snapshot returns a copy of all buckets.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Epoch returns the current request epoch.
func (a *Aggregator) Epoch() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epoch
}

// InFlight reports whether a page fetch is outstanding.
func (a *Aggregator) InFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}

// Wait blocks until no debounced or in-flight fetch remains.
func (a *Aggregator) Wait() {
	a.wg.Wait()
}

// Close cancels pending work and waits for running fetches to settle.
func (a *Aggregator) Close() {
	a.mu.Lock()
	a.closed = true
	a.stopPendingLocked()
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
}

func (a *Aggregator) fire(gen uint64) {
	defer a.wg.Done()

	a.mu.Lock()
	if gen != a.debounceGen || a.closed {
		a.mu.Unlock()
		return
	}
	a.pending = nil
	if a.inFlight || a.exhaustedLocked() {
		a.mu.Unlock()
		return
	}
	epoch := a.epoch
	page := 1
	if a.loaded {
		page = a.page + 1
	}
	a.setInFlightLocked(true)
	a.mu.Unlock()

	a.log.Debug("load more", "epoch", epoch, "page", page)
	a.notify()
	_ = a.fetch(a.ctx, epoch, page)
}

func (a *Aggregator) fetch(ctx context.Context, epoch uint64, page int) error {
	pg, err := a.src.FetchPage(ctx, page)
	if err != nil && model.KindOf(err) == "" {
		err = model.NewError(model.KindNetworkFailure, "fetch page", err)
	}

	a.mu.Lock()
	if epoch != a.epoch {
		current := a.epoch
		a.mu.Unlock()
		a.log.Debug("discard superseded page", "page", page, "epoch", epoch, "current_epoch", current)
		return nil
	}

	if err != nil {
		for name, b := range a.buckets {
			b.LastError = err
			b.Exhausted = true
			b.InFlight = false
			a.buckets[name] = b
		}
		a.inFlight = false
		a.mu.Unlock()

		a.log.Error("fetch page", "page", page, "error", err)
		a.notify()
		return err
	}

	records := listing.NormalizePage(pg.Records, page, a.log)
	incoming := make(map[partition.Name][]model.ListingRecord, len(partition.All))
	for _, r := range records {
		for _, name := range partition.Classify(r).Names() {
			incoming[name] = append(incoming[name], r)
		}
	}

	exhausted := pg.Size < a.pageSize
	for _, name := range partition.All {
		b := Merge(a.buckets[name], incoming[name], page)
		b.Exhausted = exhausted
		b.InFlight = false
		b.LastError = nil
		a.buckets[name] = b
	}
	a.page = page
	a.loaded = true
	a.inFlight = false
	a.mu.Unlock()

	a.log.Debug("merged page", "page", page, "records", len(records), "exhausted", exhausted)
	a.notify()
	return nil
}

func (a *Aggregator) resetLocked() {
	a.buckets = make(map[partition.Name]Bucket, len(partition.All))
	for _, name := range partition.All {
		a.buckets[name] = NewBucket()
	}
	a.page = 1
	a.loaded = false
	a.inFlight = false
}

func (a *Aggregator) setInFlightLocked(v bool) {
	a.inFlight = v
	for name, b := range a.buckets {
		b.InFlight = v
		a.buckets[name] = b
	}
}

func (a *Aggregator) exhaustedLocked() bool {
	for _, b := range a.buckets {
		if b.Exhausted {
			return true
		}
	}
	return false
}

func (a *Aggregator) stopPendingLocked() {
	a.debounceGen++
	if a.pending != nil && a.pending.Stop() {
		a.wg.Done()
	}
	a.pending = nil
}

func (a *Aggregator) snapshotLocked() Snapshot {
	s := make(Snapshot, len(a.buckets))
	for name, b := range a.buckets {
		s[name] = b.clone()
	}
	return s
}

func (a *Aggregator) notify() {
	if a.onChange == nil {
		return
	}
	a.onChange(a.Snapshot())
}
