// Package control implements the engine's control plane: a strongly typed
// CVar registry and a command registry with a parser, dispatcher, exec
// scripts, and dev-only gating. Dispatch is a flat name lookup rather
// than a pattern-matching grammar.
package control

import (
	"fmt"
	"strconv"
	"sync"
)

// ValueKind is the closed set of cvar value types.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindInt
	KindFloat
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a tagged cvar value. Exactly one field is meaningful, selected
// by Kind.
type Value struct {
	Kind ValueKind
	B    bool
	I    int32
	F    float32
	S    string
}

func Bool(v bool) Value      { return Value{Kind: KindBool, B: v} }
func Int(v int32) Value      { return Value{Kind: KindInt, I: v} }
func Float(v float32) Value  { return Value{Kind: KindFloat, F: v} }
func String(v string) Value  { return Value{Kind: KindString, S: v} }

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		if v.B {
			return "1"
		}
		return "0"
	case KindInt:
		return strconv.FormatInt(int64(v.I), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.F), 'g', -1, 32)
	default:
		return v.S
	}
}

// Equal compares two values of the same kind.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.B == o.B
	case KindInt:
		return v.I == o.I
	case KindFloat:
		return v.F == o.F
	default:
		return v.S == o.S
	}
}

// parseValue parses a string into a Value of the given kind: "1"/"0" for
// bool, strconv parsing for numerics, any string for string kind.
func parseValue(kind ValueKind, s string) (Value, error) {
	switch kind {
	case KindBool:
		switch s {
		case "1":
			return Bool(true), nil
		case "0":
			return Bool(false), nil
		}
		return Value{}, fmt.Errorf("control: invalid bool literal %q (want 0 or 1)", s)
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("control: invalid int literal %q: %w", s, err)
		}
		return Int(int32(n)), nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, fmt.Errorf("control: invalid float literal %q: %w", s, err)
		}
		return Float(float32(f)), nil
	default:
		return String(s), nil
	}
}

// Flag is one bit in a cvar's or command's flag set.
type Flag int

const (
	FlagCheat Flag = 1 << iota
	FlagReadOnly
	FlagNoPersist
	FlagDevOnly
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// Bounds is an optional inclusive numeric range, meaningful only for
// KindInt/KindFloat cvars.
type Bounds struct {
	Set      bool
	MinI     int32
	MaxI     int32
	MinF     float32
	MaxF     float32
}

func (b Bounds) clamp(kind ValueKind, v Value) error {
	if !b.Set {
		return nil
	}
	switch kind {
	case KindInt:
		if v.I < b.MinI || v.I > b.MaxI {
			return fmt.Errorf("control: value %d out of bounds [%d, %d]", v.I, b.MinI, b.MaxI)
		}
	case KindFloat:
		if v.F < b.MinF || v.F > b.MaxF {
			return fmt.Errorf("control: value %v out of bounds [%v, %v]", v.F, b.MinF, b.MaxF)
		}
	}
	return nil
}

// CVarID is a registry-assigned identifier, stable for the lifetime of the
// registry.
type CVarID int

// cvarEntry is the registry's internal record for one cvar.
type cvarEntry struct {
	id      CVarID
	name    string
	desc    string
	kind    ValueKind
	def     Value
	current Value
	bounds  Bounds
	flags   Flag
}

// CVarRegistry is the typed cvar store: bounded values with dirty-set
// tracking so callers can cheaply poll what changed since the last tick.
type CVarRegistry struct {
	mu       sync.Mutex
	byName   map[string]*cvarEntry
	byID     []*cvarEntry
	dirty    []CVarID
	dirtySet map[CVarID]bool
	devMode  bool
}

// NewCVarRegistry returns an empty registry with dev mode off.
func NewCVarRegistry() *CVarRegistry {
	return &CVarRegistry{
		byName:   make(map[string]*cvarEntry),
		dirtySet: make(map[CVarID]bool),
	}
}

// SetDevMode records the registry's dev-mode flag. FlagDevOnly cvars accept
// writes either way; cvar_list hides them outside dev mode.
func (r *CVarRegistry) SetDevMode(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devMode = on
}

// Register adds a cvar with a unique snake_case name and a default value
// that fixes its type. Registering a duplicate name is an error.
func (r *CVarRegistry) Register(name, desc string, def Value, bounds Bounds, flags Flag) (CVarID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return 0, fmt.Errorf("control: cvar %q already registered", name)
	}

	id := CVarID(len(r.byID))
	e := &cvarEntry{
		id: id, name: name, desc: desc, kind: def.Kind,
		def: def, current: def, bounds: bounds, flags: flags,
	}
	r.byName[name] = e
	r.byID = append(r.byID, e)
	return id, nil
}

func (r *CVarRegistry) entryByID(id CVarID) (*cvarEntry, error) {
	if int(id) < 0 || int(id) >= len(r.byID) {
		return nil, fmt.Errorf("control: unknown cvar id %d", id)
	}
	return r.byID[id], nil
}

// GetByName returns the current value of a cvar.
func (r *CVarRegistry) GetByName(name string) (Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byName[name]
	if !ok {
		return Value{}, fmt.Errorf("control: unknown cvar %q", name)
	}
	return e.current, nil
}

// Get returns the current value of a cvar by id.
func (r *CVarRegistry) Get(id CVarID) (Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.entryByID(id)
	if err != nil {
		return Value{}, err
	}
	return e.current, nil
}

func (r *CVarRegistry) markDirty(id CVarID) {
	if r.dirtySet[id] {
		return
	}
	r.dirtySet[id] = true
	r.dirty = append(r.dirty, id)
}

// set validates and applies a write, marking the cvar dirty if the
// observable value actually changed. Must be called with r.mu held.
func (r *CVarRegistry) set(e *cvarEntry, v Value) error {
	if e.flags.Has(FlagReadOnly) {
		return fmt.Errorf("control: cvar %q is read-only", e.name)
	}
	if v.Kind != e.kind {
		return fmt.Errorf("control: cvar %q expects %s, got %s", e.name, e.kind, v.Kind)
	}
	if err := e.bounds.clamp(e.kind, v); err != nil {
		return fmt.Errorf("control: cvar %q: %w", e.name, err)
	}

	changed := !e.current.Equal(v)
	e.current = v
	if changed {
		r.markDirty(e.id)
	}
	return nil
}

// SetByName parses and writes a string value, as the cvar_set command
// does.
func (r *CVarRegistry) SetByName(name, raw string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("control: unknown cvar %q", name)
	}
	v, err := parseValue(e.kind, raw)
	if err != nil {
		return err
	}
	return r.set(e, v)
}

// SetValueByName writes an already-typed value, as the persisted-config
// loader does.
func (r *CVarRegistry) SetValueByName(name string, v Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("control: unknown cvar %q", name)
	}
	return r.set(e, v)
}

// Set writes a typed value by id.
func (r *CVarRegistry) Set(id CVarID, v Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.entryByID(id)
	if err != nil {
		return err
	}
	return r.set(e, v)
}

// TakeDirty returns the ids dirtied since the last call, in order of first
// dirty, and clears the dirty set.
func (r *CVarRegistry) TakeDirty() []CVarID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.dirty
	r.dirty = nil
	r.dirtySet = make(map[CVarID]bool)
	return out
}

// CVarInfo is a read-only snapshot of one registered cvar, used by
// cvar_list/cvar_get.
type CVarInfo struct {
	ID      CVarID
	Name    string
	Desc    string
	Kind    ValueKind
	Default Value
	Current Value
	Bounds  Bounds
	Flags   Flag
}

// List returns a snapshot of every registered cvar, in registration order.
func (r *CVarRegistry) List() []CVarInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CVarInfo, len(r.byID))
	for i, e := range r.byID {
		out[i] = CVarInfo{
			ID: e.id, Name: e.name, Desc: e.desc, Kind: e.kind,
			Default: e.def, Current: e.current, Bounds: e.bounds, Flags: e.flags,
		}
	}
	return out
}
