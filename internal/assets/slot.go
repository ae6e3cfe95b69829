package assets

import (
	"sync"
	"time"

	"github.com/pallet-engine/pallet/pkg/assetid"
	"github.com/pallet-engine/pallet/internal/jobs"
)

// Status is a slot's lifecycle state.
type Status int

const (
	StatusPending Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Priority is one of the three dispatch queues, checked high to low.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow
)

// Tag further qualifies a request for throttle-policy purposes.
type Tag int

const (
	TagNormal Tag = iota
	TagBoot
	TagBackground
	TagStreaming
)

// RequestOptions parameterizes a request/reload call.
type RequestOptions struct {
	Priority Priority
	Tag      Tag
}

// slot is the manager's single per-identifier record. It is single-writer
// (the job that completes the decode) and guarded by mu for concurrent
// readers.
type slot struct {
	mu sync.Mutex

	id      assetid.ID
	status  Status
	payload Payload
	err     error

	retainOnFailure bool // set by reload(); preserves payload across a failed refresh
	cancelled       bool
	source          string

	version     uint64 // bumps on every successful decode
	byteSize    int
	contentHash uint64 // FNV-1a of the raw bytes
	decodeTime  time.Duration

	// stashedBytes/pendingPayload hand work between the I/O and CPU job
	// stages: each is written under mu by a job's run function on a
	// worker and taken by the following completion callback on the pump
	// thread.
	stashedBytes   []byte
	pendingPayload Payload

	jobHandle *jobs.Handle
}

func (s *slot) snapshot() (Status, Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.payload, s.err
}

// Handle is what callers hold after request(); it exposes the slot's
// identifier, lets the caller cancel the in-flight load, and polls for
// readiness.
type Handle struct {
	id   assetid.ID
	slot *slot
}

// ID returns the identifier this handle resolves.
func (h *Handle) ID() assetid.ID { return h.id }

// Status returns the slot's current lifecycle state.
func (h *Handle) Status() Status {
	st, _, _ := h.slot.snapshot()
	return st
}

// Payload returns the current decoded payload, if any (StatusReady, or a
// stale payload retained across a failed reload).
func (h *Handle) Payload() Payload {
	_, p, _ := h.slot.snapshot()
	return p
}

// Err returns the slot's last error: set on StatusFailed, and also on a
// StatusReady slot whose reload failed while its previous payload was
// retained.
func (h *Handle) Err() error {
	_, _, err := h.slot.snapshot()
	return err
}

// Version returns the slot's decode counter: 0 before the first
// successful decode, then monotonically increasing across reloads.
func (h *Handle) Version() uint64 {
	h.slot.mu.Lock()
	defer h.slot.mu.Unlock()
	return h.slot.version
}

// ContentHash returns the FNV-1a hash of the most recently read raw
// bytes, or 0 before any read completed.
func (h *Handle) ContentHash() uint64 {
	h.slot.mu.Lock()
	defer h.slot.mu.Unlock()
	return h.slot.contentHash
}

// Cancel flags the slot cancelled and forwards to any in-flight job.
// A request still sitting in a pending queue fails at dispatch time.
func (h *Handle) Cancel() {
	s := h.slot
	s.mu.Lock()
	s.cancelled = true
	jh := s.jobHandle
	s.mu.Unlock()
	if jh != nil {
		jh.Cancel()
	}
}
