// Package assets implements the engine's asset manager: typed request
// slots, a three-priority dispatch queue, a decode-time throttle policy,
// and a sim-tick guard around blocking waits.
package assets

import (
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/pallet-engine/pallet/pkg/assetid"
	"github.com/pallet-engine/pallet/internal/jobs"
	log "github.com/pallet-engine/pallet/pkg/palletlog"
	"github.com/pallet-engine/pallet/internal/vfs"
)

// SimTickPolicy governs await_ready's behaviour when called from inside a
// sim tick.
type SimTickPolicy int

const (
	SimTickAllow SimTickPolicy = iota
	SimTickWarn
	SimTickPanic
)

// ErrCancelled is the error recorded on a slot whose job was cancelled
// mid-flight.
var ErrCancelled = errors.New("asset load cancelled")

type pendingRequest struct {
	id   assetid.ID
	opts RequestOptions
	s    *slot
}

// Config controls manager-wide budgets and sim-tick policy.
type Config struct {
	DecodeBudgetMS int64
	SimTickPolicy  SimTickPolicy
	Release        bool // downgrades SimTickPanic to a warning
}

// Telemetry is the snapshot budget_telemetry() returns.
type Telemetry struct {
	DecodeBudgetMS int64
	DecodeSpentMS  int64
	Throttled      map[Tag]int
}

// AssetInfo is one row of list_assets().
type AssetInfo struct {
	ID          assetid.ID
	Status      Status
	Source      string
	Err         error
	DecodedSize int
	ByteSize    int
	Version     uint64
	ContentHash uint64
	DecodeTime  time.Duration
}

// Manager is the asset manager: it wraps a resolver, a VFS (for
// quake1/quakelive reads), and a job scheduler, and owns every request
// slot. Grounded on internal/iomeshage's Transfer/transferLock shape,
// generalized from file-transfer bookkeeping to typed-payload slots.
type Manager struct {
	Resolver  *assetid.Resolver
	VFS       *vfs.FS
	Scheduler *jobs.Scheduler
	Decoders  []Decoder

	cfg Config

	slots map[string]*slot
	cache *cache.Cache

	queues [3][]*pendingRequest

	simTick bool

	decodeSpentMS int64
	throttled     map[Tag]int
}

// New constructs a Manager. decoders defaults to defaultDecoders() if nil.
func New(resolver *assetid.Resolver, vfsys *vfs.FS, sched *jobs.Scheduler, cfg Config, decoders []Decoder) *Manager {
	if decoders == nil {
		decoders = defaultDecoders()
	}
	return &Manager{
		Resolver:  resolver,
		VFS:       vfsys,
		Scheduler: sched,
		Decoders:  decoders,
		cfg:       cfg,
		slots:     make(map[string]*slot),
		cache:     cache.New(5*time.Minute, 10*time.Minute),
		throttled: make(map[Tag]int),
	}
}

func (m *Manager) queueFor(p Priority) *[]*pendingRequest {
	switch p {
	case PriorityHigh:
		return &m.queues[0]
	case PriorityNormal:
		return &m.queues[1]
	default:
		return &m.queues[2]
	}
}

// resolve wraps Resolver.Resolve with a go-cache memoization layer keyed
// by canonical id, per DESIGN.md's grounding note.
func (m *Manager) resolve(id assetid.ID) (assetid.ResolvedLocation, bool) {
	key := id.String()
	if v, ok := m.cache.Get(key); ok {
		return v.(assetid.ResolvedLocation), true
	}
	loc, _, ok := m.Resolver.Resolve(id)
	if ok {
		m.cache.Set(key, loc, cache.DefaultExpiration)
	}
	return loc, ok
}

// Request validates the payload kind against the identifier, resolves the
// path synchronously, and enqueues (or coalesces onto) a slot. It returns
// a handle immediately; the caller polls Status()/Payload() or blocks on
// AwaitReady.
func (m *Manager) Request(id assetid.ID, opts RequestOptions) (*Handle, error) {
	h, _, err := m.requestOutcome(id, opts)
	return h, err
}

// RequestWithOutcome is Request plus a cache_hit bit for slots that were
// already StatusReady at request time.
func (m *Manager) RequestWithOutcome(id assetid.ID, opts RequestOptions) (*Handle, bool, error) {
	return m.requestOutcome(id, opts)
}

func (m *Manager) requestOutcome(id assetid.ID, opts RequestOptions) (*Handle, bool, error) {
	key := id.String()
	if s, ok := m.slots[key]; ok {
		cacheHit := s.status == StatusReady
		return &Handle{id: id, slot: s}, cacheHit, nil
	}

	if d := m.findDecoder(id); d == nil {
		return nil, false, fmt.Errorf("assets: no payload decoder accepts %s", key)
	}

	s := &slot{id: id, status: StatusPending}
	loc, ok := m.resolve(id)
	if !ok {
		s.status = StatusFailed
		s.err = fmt.Errorf("assets: could not resolve %s", key)
		m.slots[key] = s
		return &Handle{id: id, slot: s}, false, nil
	}
	s.source = loc.Candidate.Source

	m.slots[key] = s
	q := m.queueFor(opts.Priority)
	*q = append(*q, &pendingRequest{id: id, opts: opts, s: s})

	return &Handle{id: id, slot: s}, false, nil
}

func (m *Manager) findDecoder(id assetid.ID) Decoder {
	for _, d := range m.Decoders {
		if d.Accepts(id) {
			return d
		}
	}
	return nil
}

// Reload re-resolves and re-enqueues an idle (non-Loading) slot, retaining
// its previous payload observable until the refresh completes or, on
// failure, permanently.
func (m *Manager) Reload(id assetid.ID, opts RequestOptions) error {
	key := id.String()
	s, ok := m.slots[key]
	if !ok {
		return fmt.Errorf("assets: reload: no such slot %s", key)
	}

	s.mu.Lock()
	if s.status == StatusLoading {
		s.mu.Unlock()
		return fmt.Errorf("assets: reload: slot %s is already loading", key)
	}
	s.retainOnFailure = true
	s.err = nil
	s.cancelled = false
	s.status = StatusPending
	s.mu.Unlock()

	m.cache.Delete(key)
	loc, ok := m.resolve(id)
	if !ok {
		m.failSlot(s, fmt.Errorf("assets: could not resolve %s", key))
		return nil
	}
	s.mu.Lock()
	s.source = loc.Candidate.Source
	s.mu.Unlock()

	q := m.queueFor(opts.Priority)
	*q = append(*q, &pendingRequest{id: id, opts: opts, s: s})
	return nil
}

// Purge drops a slot outright.
func (m *Manager) Purge(id assetid.ID) {
	key := id.String()
	delete(m.slots, key)
	m.cache.Delete(key)
}

// BeginTick resets the per-tick decode-ms accounting; call once per frame
// before Pump.
func (m *Manager) BeginTick() {
	m.decodeSpentMS = 0
}

// EnterSimTick / ExitSimTick bracket the simulation tick for AwaitReady's
// policy guard.
func (m *Manager) EnterSimTick() { m.simTick = true }
func (m *Manager) ExitSimTick()  { m.simTick = false }

// shouldThrottle implements the budget-throttling policy: High priority
// and Boot-tagged work never throttle; once this tick's decode spend
// reaches budget, Background-tagged work and Low priority throttle, while
// Normal priority/Streaming-tagged work proceeds.
func (m *Manager) shouldThrottle(opts RequestOptions) bool {
	if opts.Priority == PriorityHigh || opts.Tag == TagBoot {
		return false
	}
	if m.decodeSpentMS < m.cfg.DecodeBudgetMS {
		return false
	}
	if opts.Tag == TagBackground || opts.Priority == PriorityLow {
		return true
	}
	return false
}

// Pump drains completions, then walks each priority queue once,
// dispatching or re-queuing throttled requests.
func (m *Manager) Pump() {
	m.Scheduler.PumpCompletions()

	for qi := 0; qi < 3; qi++ {
		q := &m.queues[qi]
		n := len(*q)
		for i := 0; i < n; i++ {
			req := (*q)[0]
			*q = (*q)[1:]

			if m.shouldThrottle(req.opts) {
				m.throttled[req.opts.Tag]++
				*q = append(*q, req) // re-queue at the back
				continue
			}
			if !m.dispatch(req) {
				// Scheduler queue full; retry next tick.
				*q = append(*q, req)
			}
		}
	}
}

// dispatch submits the I/O read job; its completion, if not cancelled,
// chains a CPU decode job whose own completion updates the slot. Returns
// false when the scheduler queue is full and the request must be
// re-queued.
func (m *Manager) dispatch(req *pendingRequest) bool {
	id := req.id
	s := req.s

	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		m.failSlot(s, ErrCancelled)
		return true
	}
	source := s.source
	// Mark loading before Submit: an inline scheduler runs the whole
	// read/decode chain synchronously inside it, and the terminal status
	// it leaves behind must not be clobbered afterwards.
	s.status = StatusLoading
	s.mu.Unlock()

	decodeBudget := &m.decodeSpentMS

	h, err := m.Scheduler.Submit(jobs.QueueIO, func(cancelled func() bool) error {
		return m.readBytes(id, s, source, cancelled)
	}, func(err error, cancelled bool) {
		if cancelled {
			m.failSlot(s, ErrCancelled)
			return
		}
		if err != nil {
			m.failSlot(s, err)
			return
		}
		m.dispatchDecode(id, s, decodeBudget)
	})
	if err != nil {
		if _, full := err.(jobs.ErrQueueFull); full {
			s.mu.Lock()
			s.status = StatusPending
			s.mu.Unlock()
			return false
		}
		m.failSlot(s, err)
		return true
	}

	s.mu.Lock()
	s.jobHandle = h
	wasCancelled := s.cancelled
	s.mu.Unlock()
	if wasCancelled {
		h.Cancel()
	}
	return true
}

// readBytes runs on an I/O worker; it stashes the result (and its size
// and content hash) on the slot so the chained completion callback, which
// runs on the single pump thread, can hand it to the CPU decode job.
func (m *Manager) readBytes(id assetid.ID, s *slot, source string, cancelled func() bool) error {
	if cancelled() {
		return nil
	}
	data, err := m.readSource(id, source)
	if err != nil {
		return err
	}
	hasher := fnv.New64a()
	hasher.Write(data)
	s.mu.Lock()
	s.stashedBytes = data
	s.byteSize = len(data)
	s.contentHash = hasher.Sum64()
	s.mu.Unlock()
	return nil
}

func (m *Manager) readSource(id assetid.ID, source string) ([]byte, error) {
	if id.Namespace == assetid.Engine {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, errors.Wrapf(err, "assets: reading %s", source)
		}
		return data, nil
	}
	data, _, err := m.VFS.Read(source)
	if err != nil {
		return nil, errors.Wrapf(err, "assets: reading %s from vfs", source)
	}
	return data, nil
}

func (m *Manager) dispatchDecode(id assetid.ID, s *slot, decodeBudget *int64) {
	s.mu.Lock()
	data := s.stashedBytes
	s.stashedBytes = nil
	s.mu.Unlock()

	d := m.findDecoder(id)
	if d == nil {
		m.failSlot(s, fmt.Errorf("assets: no decoder for %s", id.String()))
		return
	}

	h, err := m.Scheduler.Submit(jobs.QueueCPU, func(cancelled func() bool) error {
		if cancelled() {
			return nil
		}
		start := time.Now()
		payload, err := d.Decode(id, data)
		elapsed := time.Since(start)
		*decodeBudget += elapsed.Milliseconds()
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.pendingPayload = payload
		s.decodeTime = elapsed
		s.mu.Unlock()
		return nil
	}, func(err error, cancelled bool) {
		if cancelled {
			m.failSlot(s, ErrCancelled)
			return
		}
		if err != nil {
			m.failSlot(s, err)
			return
		}
		s.mu.Lock()
		s.payload = s.pendingPayload
		s.pendingPayload = nil
		s.status = StatusReady
		s.err = nil
		s.version++
		s.retainOnFailure = false
		s.mu.Unlock()
	})
	if err != nil {
		m.failSlot(s, err)
		return
	}
	s.mu.Lock()
	s.jobHandle = h
	s.mu.Unlock()
}

// failSlot records a failure. A reload-retain slot that already holds a
// payload stays StatusReady with the new error text alongside it; every
// other failure drops the payload and goes StatusFailed.
func (m *Manager) failSlot(s *slot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	if s.retainOnFailure && s.payload != nil {
		s.status = StatusReady
		return
	}
	s.status = StatusFailed
	s.payload = nil
}

// AwaitReady blocks (pumping the manager) until the handle's slot is
// Ready or Failed, or timeout elapses. Calling this from inside a sim
// tick is governed by cfg.SimTickPolicy.
func (m *Manager) AwaitReady(h *Handle, timeout time.Duration) error {
	if m.simTick {
		switch m.cfg.SimTickPolicy {
		case SimTickWarn:
			log.Warn("assets: await_ready called inside a sim tick for %s", h.id.String())
		case SimTickPanic:
			if m.cfg.Release {
				log.Warn("assets: await_ready called inside a sim tick for %s (downgraded from panic in release build)", h.id.String())
			} else {
				panic(fmt.Sprintf("assets: await_ready called inside a sim tick for %s", h.id.String()))
			}
		}
	}

	deadline := time.Now().Add(timeout)
	for {
		switch h.Status() {
		case StatusReady:
			return nil
		case StatusFailed:
			return h.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("assets: await_ready timed out waiting for %s", h.id.String())
		}
		m.Pump()
		time.Sleep(time.Millisecond)
	}
}

// BudgetTelemetry snapshots this tick's decode spend and throttle counts.
func (m *Manager) BudgetTelemetry() Telemetry {
	t := Telemetry{DecodeBudgetMS: m.cfg.DecodeBudgetMS, DecodeSpentMS: m.decodeSpentMS, Throttled: make(map[Tag]int)}
	for k, v := range m.throttled {
		t.Throttled[k] = v
	}
	return t
}

// ListAssets returns a snapshot of every known slot.
func (m *Manager) ListAssets() []AssetInfo {
	out := make([]AssetInfo, 0, len(m.slots))
	for _, s := range m.slots {
		s.mu.Lock()
		info := AssetInfo{
			ID:          s.id,
			Status:      s.status,
			Source:      s.source,
			Err:         s.err,
			ByteSize:    s.byteSize,
			Version:     s.version,
			ContentHash: s.contentHash,
			DecodeTime:  s.decodeTime,
		}
		if s.payload != nil {
			info.DecodedSize = s.payload.DecodedSize()
		}
		s.mu.Unlock()
		out = append(out, info)
	}
	return out
}
