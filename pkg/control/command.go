package control

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Handler executes a parsed Line against a Registry, dispatched by a flat
// name lookup rather than a pattern-matching grammar.
type Handler func(reg *Registry, l Line) (string, error)

// CommandSpec describes one registered command.
type CommandSpec struct {
	Name  string
	Help  string
	Usage string
	Flags Flag // only FlagDevOnly is meaningful here
}

type commandEntry struct {
	spec    CommandSpec
	handler Handler
}

// Registry is the command-plane counterpart to CVarRegistry: it owns a
// CVarRegistry plus the named command table, and is the single object
// handlers receive so built-ins can read/write cvars and list commands.
type Registry struct {
	CVars *CVarRegistry

	mu       sync.Mutex
	commands map[string]*commandEntry
	devMode  bool
	fallback Handler
}

// NewRegistry builds an empty command registry and registers the
// built-ins (help, cvar_list, cvar_get, cvar_set, cmd_list, exec,
// dev_exec).
func NewRegistry(devMode bool) *Registry {
	r := &Registry{
		CVars:    NewCVarRegistry(),
		commands: make(map[string]*commandEntry),
		devMode:  devMode,
	}
	r.CVars.SetDevMode(devMode)
	registerBuiltins(r)
	return r
}

// Register adds a command. Re-registering an existing name is an error.
func (r *Registry) Register(spec CommandSpec, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[spec.Name]; exists {
		return fmt.Errorf("control: command %q already registered", spec.Name)
	}
	r.commands[spec.Name] = &commandEntry{spec: spec, handler: h}
	return nil
}

// DevMode reports whether dev-only commands are unlocked and dev-only cvars
// are listed.
func (r *Registry) DevMode() bool { return r.devMode }

// SetFallback installs a handler invoked for any command name that has no
// registered spec. Passing nil removes it, restoring the "unknown command"
// error for unregistered names.
func (r *Registry) SetFallback(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

// List returns every registered command spec, sorted by name.
func (r *Registry) List() []CommandSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CommandSpec, 0, len(r.commands))
	for _, e := range r.commands {
		out = append(out, e.spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) lookup(name string) (*commandEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.commands[name]
	return e, ok
}

// Dispatch parses and executes a single command line, returning the
// handler's output text (e.g. for cvar_get/help) or an error. Dev-only
// commands are rejected outright when the registry is not in dev mode.
func (r *Registry) Dispatch(line string) (string, error) {
	l, err := Parse(line)
	if err != nil {
		return "", err
	}
	return r.DispatchLine(l)
}

// DispatchLine executes an already-parsed Line.
func (r *Registry) DispatchLine(l Line) (string, error) {
	e, ok := r.lookup(l.Name)
	if !ok {
		r.mu.Lock()
		fb := r.fallback
		r.mu.Unlock()
		if fb != nil {
			return fb(r, l)
		}
		return "", fmt.Errorf("control: unknown command %q", l.Name)
	}
	if e.spec.Flags.Has(FlagDevOnly) && !r.devMode {
		return "", fmt.Errorf("control: command %q is dev-only", l.Name)
	}
	if e.handler == nil {
		return "", fmt.Errorf("control: command %q has no handler wired yet", l.Name)
	}
	return e.handler(r, l)
}

// ExecFile dispatches every non-blank, non-comment ("#"-prefixed) line of
// a script file in order. It stops at the first error.
func (r *Registry) ExecFile(path string) error {
	lines, err := readScriptLines(path)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := r.Dispatch(line); err != nil {
			return fmt.Errorf("control: %s: %w", path, err)
		}
	}
	return nil
}

// DevExecFile is like ExecFile but continues past per-line errors,
// returning the count of lines that failed (0, nil on full success).
func (r *Registry) DevExecFile(path string) (int, error) {
	lines, err := readScriptLines(path)
	if err != nil {
		return 0, err
	}
	failures := 0
	for _, line := range lines {
		if _, err := r.Dispatch(line); err != nil {
			failures++
		}
	}
	return failures, nil
}

func readScriptLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("control: opening script %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("control: reading script %s: %w", path, err)
	}
	return out, nil
}
