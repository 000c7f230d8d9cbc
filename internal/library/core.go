// ABOUTME: Data synchronization core owning the in-memory {projects, references} aggregate
// ABOUTME: Serializes mutations through one worker, writes through the store, then republishes a fresh snapshot

package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/2389/refforge/internal/store"
)

// Errors reported across the Core boundary. Check with errors.Is.
var (
	// ErrStoreUnavailable means the backing store could not be opened or read.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrWriteFailed means a mutation's write failed; the aggregate is unchanged.
	ErrWriteFailed = errors.New("write failed")

	// ErrRefreshFailed means a mutation was written but the aggregate could
	// not be reloaded afterwards. The write is kept; the published snapshot
	// is stale until the next successful mutation or reload.
	ErrRefreshFailed = errors.New("written but not reloaded")

	// ErrNotFound means an update or delete named an id that doesn't exist.
	ErrNotFound = store.ErrNotFound

	// ErrInvalid means the mutation was rejected before or by the store
	// (missing fields, unknown project, duplicate id).
	ErrInvalid = errors.New("invalid mutation")

	// ErrClosed is returned by operations on a closed Core.
	ErrClosed = errors.New("library closed")
)

// DefaultInitTimeout bounds how long Initialize waits for the store.
const DefaultInitTimeout = 10 * time.Second

// Phase is the Core's lifecycle state
type Phase int32

// Lifecycle phases
const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
	PhaseDegraded
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Opener opens the durable store. It is called by Initialize and Reconnect.
type Opener func(ctx context.Context) (store.Store, error)

// Options configures a Core
type Options struct {
	// Open opens the durable store. Required.
	Open Opener

	// Seed writes SeedData into an empty store on first start and backs the
	// degraded in-memory store.
	Seed bool

	// SeedData defaults to SampleData.
	SeedData func() store.AppData

	// InitTimeout defaults to DefaultInitTimeout.
	InitTimeout time.Duration

	Logger *slog.Logger

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Snapshot is an immutable, fully-formed copy of the aggregate.
// A new Snapshot replaces the previous one after every successful mutation.
type Snapshot struct {
	Data    store.AppData
	Version uint64
	Loaded  time.Time
}

// View is what the UI renders: the current data plus lifecycle flags.
type View struct {
	Data        *store.AppData
	Loading     bool
	Phase       Phase
	PendingSync int
}

type request struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Core is the single owner of the store handle and the published aggregate.
// Mutations run one at a time in submission order.
type Core struct {
	opts        Options
	logger      *slog.Logger
	broadcaster *broadcaster

	snap    atomic.Pointer[Snapshot]
	phase   atomic.Int32
	pending atomic.Int64

	requests  chan request
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the worker goroutine.
	st          store.Store
	durable     bool
	initialized bool
	journal     []mutation
	version     uint64
}

// New creates a Core and starts its worker. The aggregate starts empty in
// PhaseUninitialized; call Initialize to load it.
func New(opts Options) *Core {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SeedData == nil {
		opts.SeedData = SampleData
	}
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = DefaultInitTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	logger := opts.Logger.With("component", "library")
	c := &Core{
		opts:        opts,
		logger:      logger,
		broadcaster: newBroadcaster(logger),
		requests:    make(chan request),
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	c.snap.Store(&Snapshot{Data: store.AppData{Projects: []store.Project{}, References: []store.Reference{}}})

	go c.run()
	return c
}

func (c *Core) run() {
	defer close(c.stopped)
	for {
		select {
		case req := <-c.requests:
			c.execute(req)
		case <-c.quit:
			return
		}
	}
}

// execute runs one request, converting a panic into ErrWriteFailed.
func (c *Core) execute(req request) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("recovered panic in library operation", "panic", r)
			req.done <- fmt.Errorf("%w: internal error: %v", ErrWriteFailed, r)
		}
	}()
	req.done <- req.fn(req.ctx)
}

// do hands fn to the worker and waits for its result. Once accepted, the
// request always runs to completion.
func (c *Core) do(ctx context.Context, fn func(ctx context.Context) error) error {
	req := request{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case c.requests <- req:
	case <-c.quit:
		return ErrClosed
	}
	return <-req.done
}

// Snapshot returns the current aggregate. Never nil. Callers must treat it
// as read-only.
func (c *Core) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Phase returns the current lifecycle phase.
func (c *Core) Phase() Phase {
	return Phase(c.phase.Load())
}

// PendingSync returns the number of mutations accepted while degraded that
// have not been written to the durable store.
func (c *Core) PendingSync() int {
	return int(c.pending.Load())
}

// View returns the UI-facing state.
func (c *Core) View() View {
	snap := c.Snapshot()
	phase := c.Phase()
	return View{
		Data:        &snap.Data,
		Loading:     phase == PhaseLoading,
		Phase:       phase,
		PendingSync: c.PendingSync(),
	}
}

// Subscribe returns a channel receiving every newly published snapshot until
// ctx is cancelled or the Core is closed.
func (c *Core) Subscribe(ctx context.Context) <-chan *Snapshot {
	ch, _ := c.broadcaster.Subscribe(ctx)
	return ch
}

func (c *Core) setPhase(p Phase) {
	old := Phase(c.phase.Swap(int32(p)))
	if old != p {
		c.logger.Info("library phase changed", "from", old.String(), "to", p.String())
	}
}

// Initialize opens the store, seeds it if empty and loads the aggregate.
// If the store can't be opened within InitTimeout, the Core enters
// PhaseDegraded and returns an error wrapping ErrStoreUnavailable; the Core
// stays usable against an in-memory store.
func (c *Core) Initialize(ctx context.Context) error {
	return c.do(ctx, func(ctx context.Context) error {
		if c.initialized {
			return errors.New("library already initialized")
		}
		c.initialized = true
		c.setPhase(PhaseLoading)

		st, err := c.openStore(ctx)
		if err != nil {
			c.logger.Warn("store unavailable, continuing with in-memory data", "error", err)
			c.enterDegraded(ctx)
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		if err := c.attach(ctx, st); err != nil {
			_ = st.Close()
			c.logger.Warn("store unusable, continuing with in-memory data", "error", err)
			c.enterDegraded(ctx)
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		c.setPhase(PhaseReady)
		return nil
	})
}

// openStore calls the Opener with a bounded wait. A store that finishes
// opening after the deadline is closed.
func (c *Core) openStore(ctx context.Context) (store.Store, error) {
	if c.opts.Open == nil {
		return nil, errors.New("no store opener configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.InitTimeout)
	defer cancel()

	type result struct {
		st  store.Store
		err error
	}
	ch := make(chan result, 1)
	go func() {
		st, err := c.opts.Open(ctx)
		ch <- result{st: st, err: err}
	}()

	select {
	case r := <-ch:
		return r.st, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.st != nil {
				_ = r.st.Close()
			}
		}()
		return nil, fmt.Errorf("opening store: %w", ctx.Err())
	}
}

// attach seeds st if it is empty, loads it and makes it the Core's durable store.
func (c *Core) attach(ctx context.Context, st store.Store) error {
	if err := c.seedIfEmpty(ctx, st); err != nil {
		return err
	}
	c.st = st
	c.durable = true
	if err := c.refresh(ctx); err != nil {
		c.st = nil
		c.durable = false
		return err
	}
	return nil
}

// seedIfEmpty writes the seed dataset once. A store holding any row is left alone.
func (c *Core) seedIfEmpty(ctx context.Context, st store.Store) error {
	if !c.opts.Seed {
		return nil
	}

	counts, err := st.Counts(ctx)
	if err != nil {
		return fmt.Errorf("counting rows: %w", err)
	}
	if !counts.Empty() {
		return nil
	}

	data := c.opts.SeedData()
	if err := st.Import(ctx, data); err != nil {
		return fmt.Errorf("seeding store: %w", err)
	}
	c.logger.Info("seeded empty store", "projects", len(data.Projects), "references", len(data.References))
	return nil
}

// enterDegraded swaps in an in-memory store holding the fallback dataset.
func (c *Core) enterDegraded(ctx context.Context) {
	mem := store.NewMemoryStore()
	if c.opts.Seed {
		if err := mem.Import(ctx, c.opts.SeedData()); err != nil {
			c.logger.Error("loading fallback dataset", "error", err)
		}
	}
	c.st = mem
	c.durable = false
	if err := c.refresh(ctx); err != nil {
		c.logger.Error("loading fallback aggregate", "error", err)
	}
	c.setPhase(PhaseDegraded)
}

// Reconnect retries the durable store while degraded. On success the
// pending journal is replayed in order; entries the store rejects are
// logged and dropped. It is a no-op when the Core is ready.
func (c *Core) Reconnect(ctx context.Context) error {
	return c.do(ctx, func(ctx context.Context) error {
		if c.durable {
			return nil
		}
		if !c.initialized {
			return errors.New("library not initialized")
		}

		st, err := c.openStore(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if err := c.seedIfEmpty(ctx, st); err != nil {
			_ = st.Close()
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		replayed, dropped := 0, 0
		for _, m := range c.journal {
			if err := m.apply(ctx, st); err != nil {
				dropped++
				c.logger.Warn("dropping pending mutation", "op", m.kind, "target", m.target(), "error", err)
				continue
			}
			replayed++
		}

		mem := c.st
		c.st = st
		c.durable = true
		if err := c.refresh(ctx); err != nil {
			// Journal already flushed; stay on the durable store and report.
			c.journal = nil
			c.pending.Store(0)
			_ = mem.Close()
			c.setPhase(PhaseReady)
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		c.journal = nil
		c.pending.Store(0)
		_ = mem.Close()
		c.setPhase(PhaseReady)
		c.logger.Info("reconnected to store", "replayed", replayed, "dropped", dropped)
		return nil
	})
}

// refresh re-reads the full aggregate and publishes it. Must run on the worker.
func (c *Core) refresh(ctx context.Context) error {
	projects, err := c.st.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("listing projects: %w", err)
	}
	refs, err := c.st.ListReferences(ctx)
	if err != nil {
		return fmt.Errorf("listing references: %w", err)
	}

	c.version++
	snap := &Snapshot{
		Data:    store.AppData{Projects: projects, References: refs},
		Version: c.version,
		Loaded:  c.opts.Now(),
	}
	c.snap.Store(snap)
	c.broadcaster.Publish(snap)
	return nil
}

// Close stops the worker and closes the store. Mutations still pending
// while degraded are lost.
func (c *Core) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.do(context.Background(), func(ctx context.Context) error {
			if n := len(c.journal); n > 0 {
				c.logger.Warn("closing with unsynced mutations", "pending", n)
			}
			if c.st == nil {
				return nil
			}
			e := c.st.Close()
			c.st = nil
			return e
		})
		close(c.quit)
		<-c.stopped
		c.broadcaster.Close()
	})
	return err
}

// AddProject creates a project with a fresh id.
func (c *Core) AddProject(ctx context.Context, name, color string) (store.Project, error) {
	p := store.Project{
		ID:    c.opts.NewID(),
		Name:  strings.TrimSpace(name),
		Color: color,
	}
	if err := p.Validate(); err != nil {
		return store.Project{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.mutate(ctx, mutation{kind: opAddProject, project: p}); err != nil {
		if errors.Is(err, ErrRefreshFailed) {
			return p, err
		}
		return store.Project{}, err
	}
	return p, nil
}

// UpdateProject replaces the name and color of an existing project.
func (c *Core) UpdateProject(ctx context.Context, p store.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return c.mutate(ctx, mutation{kind: opUpdateProject, project: p})
}

// DeleteProject removes a project and all of its references as one write.
// Clearing a UI filter that pointed at the project is the caller's job.
func (c *Core) DeleteProject(ctx context.Context, id string) error {
	return c.mutate(ctx, mutation{kind: opDeleteProject, id: id})
}

// AddReference assigns an id and creation time, applies defaults and
// stores the reference. ID and CreatedAt on ref are ignored.
func (c *Core) AddReference(ctx context.Context, ref store.Reference) (store.Reference, error) {
	ref = ref.Clone()
	ref.ID = c.opts.NewID()
	ref.CreatedAt = c.opts.Now().UTC()
	if ref.Status == "" {
		ref.Status = store.StatusNotFinished
	}
	if ref.Tags == nil {
		ref.Tags = []string{}
	}

	if err := ref.Validate(); err != nil {
		return store.Reference{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.mutate(ctx, mutation{kind: opAddReference, reference: ref}); err != nil {
		if errors.Is(err, ErrRefreshFailed) {
			return ref, err
		}
		return store.Reference{}, err
	}
	return ref, nil
}

// UpdateReference fully replaces an existing reference by id. CreatedAt is
// kept from the stored row.
func (c *Core) UpdateReference(ctx context.Context, ref store.Reference) error {
	ref = ref.Clone()
	if ref.Status == "" {
		ref.Status = store.StatusNotFinished
	}
	if ref.Tags == nil {
		ref.Tags = []string{}
	}
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return c.mutate(ctx, mutation{kind: opUpdateReference, reference: ref})
}

// DeleteReference removes a reference.
func (c *Core) DeleteReference(ctx context.Context, id string) error {
	return c.mutate(ctx, mutation{kind: opDeleteReference, id: id})
}

// mutate writes m through the current store and republishes the aggregate.
// On failure nothing is published. A reload that fails after the write is
// retried once before ErrRefreshFailed is returned.
func (c *Core) mutate(ctx context.Context, m mutation) error {
	return c.do(ctx, func(ctx context.Context) error {
		if c.st == nil {
			return fmt.Errorf("%w: library not initialized", ErrStoreUnavailable)
		}

		if err := m.apply(ctx, c.st); err != nil {
			return classify(m, err)
		}

		if !c.durable {
			c.journal = append(c.journal, m)
			c.pending.Store(int64(len(c.journal)))
		}

		if err := c.refresh(ctx); err != nil {
			c.logger.Warn("reload after write failed, retrying", "op", m.kind, "target", m.target(), "error", err)
			if err := c.refresh(ctx); err != nil {
				return fmt.Errorf("%w: %s %s: %w", ErrRefreshFailed, m.kind, m.target(), err)
			}
		}

		c.logger.Debug("applied mutation", "op", m.kind, "target", m.target(), "durable", c.durable)
		return nil
	})
}

func classify(m mutation, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s %s: %w", m.kind, m.target(), ErrNotFound)
	case errors.Is(err, store.ErrUnknownProject), errors.Is(err, store.ErrDuplicateID):
		return fmt.Errorf("%w: %s %s: %w", ErrInvalid, m.kind, m.target(), err)
	default:
		return fmt.Errorf("%w: %s %s: %w", ErrWriteFailed, m.kind, m.target(), err)
	}
}
