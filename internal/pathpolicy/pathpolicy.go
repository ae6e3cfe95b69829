// Package pathpolicy resolves a logical config name to a concrete
// filesystem path, trying CLI override, environment override, a
// repo-adjacent dev override root, a shipped content root, and a per-user
// config root in that order.
package pathpolicy

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/pallet-engine/pallet/pkg/palletlog"
)

// Kind is the closed set of config kinds the policy resolves.
type Kind string

const (
	KindPlaylist Kind = "playlist"
	KindScript   Kind = "script"
	KindCvars    Kind = "cvars"
	KindMounts   Kind = "mounts"
)

var overrideEnvVar = map[Kind]string{
	KindPlaylist: "PALLET_CONFIG_OVERRIDE_PLAYLIST",
	KindScript:   "PALLET_CONFIG_OVERRIDE_SCRIPT",
	KindCvars:    "PALLET_CONFIG_OVERRIDE_CVARS",
	KindMounts:   "PALLET_CONFIG_OVERRIDE_MOUNTS",
}

// Layer tags where a candidate path comes from.
type Layer string

const (
	LayerCLI     Layer = "cli"
	LayerEnv     Layer = "env"
	LayerDev     Layer = "dev"
	LayerShipped Layer = "shipped"
	LayerUser    Layer = "user"
	LayerBuiltin Layer = "builtin"
)

// Candidate is one entry in the resolution trail, with an existence bit so
// tooling can render a "why was this path chosen" report.
type Candidate struct {
	Layer  Layer
	Path   string
	Exists bool
}

// Policy holds the engine's fixed roots: the dev override root
// (repo-adjacent when running from a checkout), and the shipped content
// root (alongside the installed binary).
type Policy struct {
	AppName    string // used to build the per-user config dir, e.g. "pallet"
	DevRoot    string // e.g. "<repo>/.pallet/config"
	ShippedDir string // e.g. "<content-root>/config"

	// Getenv and Stat are overridable for tests; default to os.Getenv and
	// os.Stat.
	Getenv func(string) string
	Stat   func(string) (os.FileInfo, error)
}

// New returns a Policy with OS-backed defaults.
func New(appName, devRoot, shippedDir string) *Policy {
	return &Policy{
		AppName:    appName,
		DevRoot:    devRoot,
		ShippedDir: shippedDir,
		Getenv:     os.Getenv,
		Stat:       os.Stat,
	}
}

func (p *Policy) getenv(k string) string {
	if p.Getenv != nil {
		return p.Getenv(k)
	}
	return os.Getenv(k)
}

func (p *Policy) stat(path string) (os.FileInfo, error) {
	if p.Stat != nil {
		return p.Stat(path)
	}
	return os.Stat(path)
}

func (p *Policy) exists(path string) bool {
	_, err := p.stat(path)
	return err == nil
}

// UserConfigRoot determines the per-user config root: APPDATA (Windows),
// then XDG_CONFIG_HOME, then HOME/.config/<app>.
func (p *Policy) UserConfigRoot() string {
	if v := p.getenv("APPDATA"); v != "" {
		return filepath.Join(v, p.AppName)
	}
	if v := p.getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, p.AppName)
	}
	if v := p.getenv("HOME"); v != "" {
		return filepath.Join(v, ".config", p.AppName)
	}
	return filepath.Join(".", ".config", p.AppName)
}

// Trail returns the full ordered candidate list for (kind, name), including
// the CLI override when cliOverride != "".
func (p *Policy) Trail(kind Kind, name, cliOverride string) []Candidate {
	var trail []Candidate

	if cliOverride != "" {
		trail = append(trail, Candidate{Layer: LayerCLI, Path: cliOverride, Exists: p.exists(cliOverride)})
	}

	if envVar, ok := overrideEnvVar[kind]; ok {
		if v := p.getenv(envVar); v != "" {
			trail = append(trail, Candidate{Layer: LayerEnv, Path: v, Exists: p.exists(v)})
		}
	}

	if p.DevRoot != "" {
		dev := filepath.Join(p.DevRoot, string(kind), name)
		trail = append(trail, Candidate{Layer: LayerDev, Path: dev, Exists: p.exists(dev)})
	}

	if p.ShippedDir != "" {
		shipped := filepath.Join(p.ShippedDir, string(kind), name)
		trail = append(trail, Candidate{Layer: LayerShipped, Path: shipped, Exists: p.exists(shipped)})
	}

	user := filepath.Join(p.UserConfigRoot(), string(kind), name)
	trail = append(trail, Candidate{Layer: LayerUser, Path: user, Exists: p.exists(user)})

	return trail
}

// Resolve walks Trail and returns the first existing candidate's path. If
// none exist and allowBuiltin is true, a synthetic built-in path (the
// shipped-layer path, even though it doesn't exist) is returned instead of
// an error.
func (p *Policy) Resolve(kind Kind, name, cliOverride string, allowBuiltin bool) (string, []Candidate, error) {
	trail := p.Trail(kind, name, cliOverride)

	for _, c := range trail {
		if c.Exists {
			if log.WillLog(log.DEBUG) {
				log.Debug("pathpolicy: resolved %s/%s to %s (%s)", kind, name, c.Path, c.Layer)
			}
			return c.Path, trail, nil
		}
	}

	if allowBuiltin {
		builtin := filepath.Join(p.ShippedDir, string(kind), name)
		trail = append(trail, Candidate{Layer: LayerBuiltin, Path: builtin, Exists: false})
		return builtin, trail, nil
	}

	return "", trail, fmt.Errorf("pathpolicy: no candidate found for %s/%s", kind, name)
}
