// Command pallet boots the engine core: path policy, VFS mounts, the asset
// manager, the job scheduler, the physics/collision world, and the control
// plane, then runs the host simulation tick loop until interrupted. Window
// creation, rendering, audio, and GUI tooling are external collaborators
// this binary never touches.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pallet-engine/pallet/internal/assets"
	"github.com/pallet-engine/pallet/internal/jobs"
	"github.com/pallet-engine/pallet/internal/levelmanifest"
	"github.com/pallet-engine/pallet/internal/motor"
	"github.com/pallet-engine/pallet/internal/pathpolicy"
	"github.com/pallet-engine/pallet/internal/quakeindex"
	"github.com/pallet-engine/pallet/internal/physics"
	"github.com/pallet-engine/pallet/internal/vfs"
	"github.com/pallet-engine/pallet/pkg/assetid"
	"github.com/pallet-engine/pallet/pkg/control"
	log "github.com/pallet-engine/pallet/pkg/palletlog"
)

const appName = "pallet"

var (
	fConfigDir = flag.String("config-dir", "", "override directory probed for dev config (.pallet/config layout)")
	fDev       = flag.Bool("dev", false, "enable dev-only cvars and commands")
	fMap       = flag.String("map", "", "test-map name to load on boot, under engine:test_map/<name>")
	fLevel     = flag.String("level", "", "level to load on boot, via its levels/<name>/level.toml manifest")
	fQuakeDir  = flag.String("quake-dir", "", "legacy Quake install to index and mount under raw/quake")
	fTickHz    = flag.Float64("tick-hz", 60, "fixed simulation tick rate")
)

func main() {
	flag.Parse()

	log.Default = log.New(os.Stderr, log.INFO, 512)
	log.Info("pallet booting (dev=%v tick-hz=%.1f)", *fDev, *fTickHz)

	policy := pathpolicy.New(appName, *fConfigDir, "content/config")

	fsys := vfs.New()
	mountsPath, candidates, err := policy.Resolve(pathpolicy.KindMounts, "mounts.toml", "", true)
	if err != nil {
		log.Fatal("resolving mounts config: %v", err)
	}
	if log.WillLog(log.DEBUG) {
		for _, c := range candidates {
			log.Debug("mounts candidate: %s (exists=%v)", c.Path, c.Exists)
		}
	}
	applyMounts(fsys, mountsPath)
	if *fQuakeDir != "" {
		mountQuakeInstall(fsys, "content", *fQuakeDir)
	}

	resolver := assetid.NewResolver(*fConfigDir, "content", fsys)

	sched := jobs.New(jobs.DefaultConfig())
	defer sched.Shutdown()

	mgr := assets.New(resolver, fsys, sched, assets.Config{
		DecodeBudgetMS: 8,
		SimTickPolicy:  assets.SimTickWarn,
	}, nil)

	world := physics.NewWorld(physics.Vec3{X: 0, Y: -9.8, Z: 0})
	player := &playerState{
		collision: &physics.CharacterCollision{World: world, Profile: physics.DefaultProfile()},
		motor:     motor.NewArenaMotor(motor.DefaultArenaConfig()),
		position:  physics.Vec3{Y: 2},
	}

	registry := control.NewRegistry(*fDev)
	registerOperationalCVars(registry)
	applyCVarConfig(registry, policy)

	if *fMap != "" {
		log.Info("requesting boot map asset engine:test_map/%s", *fMap)
		id, err := assetid.New(assetid.Engine, assetid.KindTestMap, *fMap)
		if err != nil {
			log.Error("invalid boot map name %q: %v", *fMap, err)
		} else if _, err := mgr.Request(id, assets.RequestOptions{Priority: assets.PriorityHigh, Tag: assets.TagBoot}); err != nil {
			log.Error("boot map request failed: %v", err)
		}
	}
	if *fLevel != "" {
		requestBootLevel(mgr, resolver, *fLevel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	tickInterval := time.Duration(float64(time.Second) / *fTickHz)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	log.Info("entering tick loop at %s/tick", tickInterval)
	for {
		select {
		case <-sigCh:
			log.Info("shutdown requested")
			return
		case <-ticker.C:
			tick(mgr, world, player, float32(1 / *fTickHz))
			applyDirtyCVars(registry)
			if msg, ok := sched.StickyError(); ok {
				log.Error("sticky scheduler error: %s", msg)
				sched.AckStickyError()
			}
		}
	}
}

// applyDirtyCVars drains the registry's dirty set and live-applies the
// two cvars the logger cares about. No other cvar is pushed into a
// subsystem here; the asset manager, for one, keeps the decode budget
// it was constructed with.
func applyDirtyCVars(registry *control.Registry) {
	dirty := registry.CVars.TakeDirty()
	if len(dirty) == 0 {
		return
	}
	dirtyID := make(map[control.CVarID]bool, len(dirty))
	for _, id := range dirty {
		dirtyID[id] = true
	}
	var touchedLog bool
	for _, info := range registry.CVars.List() {
		if dirtyID[info.ID] && (info.Name == "log_level" || info.Name == "log_filter") {
			touchedLog = true
			break
		}
	}
	if !touchedLog {
		return
	}
	if v, err := registry.CVars.GetByName("log_level"); err == nil {
		if lvl, err := log.ParseLevel(v.S); err == nil {
			log.Default.SetLevel(lvl)
		}
	}
	if v, err := registry.CVars.GetByName("log_filter"); err == nil {
		log.Default.SetFilter(v.S)
	}
}

// playerState carries the simulated character between ticks: the motor
// computes a desired translation, the character-collision component
// resolves it against the world, and the results feed back into the
// motor's state.
type playerState struct {
	collision *physics.CharacterCollision
	motor     *motor.ArenaMotor
	state     motor.State
	position  physics.Vec3
}

func (p *playerState) step(in motor.Input, dt float32) {
	in.DT = dt
	out := p.motor.Step(&p.state, in)

	res := p.collision.Move(physics.MoveInput{
		Position:    p.position,
		Translation: physics.Vec3{X: out.DesiredTranslation.X, Y: out.DesiredTranslation.Y, Z: out.DesiredTranslation.Z},
		AllowStep:   !out.Jumped,
		DT:          dt,
	})

	p.position = res.Position
	p.state.Velocity = out.Velocity
	p.state.Grounded = res.Grounded
	p.state.GroundNormal = motor.Vec3{X: res.GroundNormal.X, Y: res.GroundNormal.Y, Z: res.GroundNormal.Z}
	if res.HitCeiling && p.state.Velocity.Y > 0 {
		p.state.Velocity.Y = 0
	}
}

func tick(mgr *assets.Manager, world *physics.World, player *playerState, dt float32) {
	mgr.BeginTick()
	mgr.EnterSimTick()
	world.Step(dt)
	// Input is an external collaborator; with none attached the motor
	// still integrates gravity and grounding against the world.
	player.step(motor.Input{YawForward: motor.Vec3{Z: 1}}, dt)
	mgr.Pump()
	mgr.ExitSimTick()
}

// applyCVarConfig loads the persisted cvars config file (a flat TOML
// name→value table) and pushes it into the registry. Missing file is
// normal on first boot; individual bad entries log and skip.
func applyCVarConfig(registry *control.Registry, policy *pathpolicy.Policy) {
	path, _, err := policy.Resolve(pathpolicy.KindCvars, "cvars.toml", "", true)
	if err != nil {
		log.Debug("no cvars config: %v", err)
		return
	}
	if _, err := os.Stat(path); err != nil {
		log.Debug("no cvars config at %s, using defaults", path)
		return
	}

	values := make(map[string]any)
	if _, err := toml.DecodeFile(path, &values); err != nil {
		log.Error("loading cvars config %s: %v", path, err)
		return
	}
	for _, err := range registry.CVars.ApplyValueMap(values) {
		log.Warn("cvars config %s: %v", path, err)
	}
	// Drain the boot-time restores into their consumers right away.
	applyDirtyCVars(registry)
}

// mountQuakeInstall indexes a legacy Quake install (building or reusing
// the cached index under the content root) and mounts its layers into the
// VFS at raw/quake, loose directory first so it wins duplicate paths.
func mountQuakeInstall(fsys *vfs.FS, contentRoot, quakeDir string) {
	idx, err := quakeindex.LoadOrBuild(contentRoot, quakeDir)
	if err != nil {
		log.Error("indexing quake install %s: %v", quakeDir, err)
		return
	}
	if err := idx.WriteTo(quakeindex.DefaultIndexPath(contentRoot)); err != nil {
		log.Warn("caching quake index: %v", err)
	}

	rec := idx.ManifestRecord()
	log.Info("quake index: %d entries, fingerprint %s", rec.Count, rec.Fingerprint)
	if log.WillLog(log.DEBUG) {
		for _, d := range idx.Duplicates() {
			log.Debug("quake index: %s shadowed in %d other mount(s), winner %s",
				d.Path, len(d.Others), d.Winner.Source.Path)
		}
	}

	for _, m := range idx.Mounts {
		switch m.Kind {
		case vfs.BackingDirectory:
			fsys.AddDirectory(m.MountPoint, m.Source)
		case vfs.BackingPAK:
			if err := fsys.AddPAK(m.MountPoint, m.Source); err != nil {
				log.Error("mounting %s: %v", m.Source, err)
			}
		case vfs.BackingPK3:
			if err := fsys.AddPK3(m.MountPoint, m.Source); err != nil {
				log.Error("mounting %s: %v", m.Source, err)
			}
		}
	}
}

// requestBootLevel resolves a level's manifest and enqueues everything it
// names: geometry first, then preload assets and hard requirements.
func requestBootLevel(mgr *assets.Manager, resolver *assetid.Resolver, level string) {
	loc, err := levelmanifest.Locate(resolver, level)
	if err != nil {
		log.Error("locating boot level %q: %v", level, err)
		return
	}
	manifest, err := levelmanifest.Load(loc.File)
	if err != nil {
		log.Error("loading boot level manifest: %v", err)
		return
	}

	opts := assets.RequestOptions{Priority: assets.PriorityHigh, Tag: assets.TagBoot}
	requested := 0
	if manifest.Geometry.String() != "" {
		// The geometry's derived identity maps onto the physical archive
		// entry maps/<name>.bsp; request those raw bytes for the cook.
		if rawID, ok := quakeindex.GeometryRawID(manifest.Geometry); ok {
			if _, err := mgr.Request(rawID, opts); err != nil {
				log.Error("boot level geometry %s: %v", rawID.String(), err)
			} else {
				requested++
			}
		}
	}
	for _, list := range [][]assetid.ID{manifest.Assets, manifest.Requires} {
		for _, id := range list {
			if _, err := mgr.Request(id, opts); err != nil {
				log.Error("boot level asset %s: %v", id.String(), err)
				continue
			}
			requested++
		}
	}
	log.Info("boot level %s (%s layer): requested %d asset(s)", loc.ID.String(), loc.Source, requested)
}

// mountsConfig is the shape of the TOML-encoded mounts config file.
type mountsConfig struct {
	Mounts []struct {
		Root   string `toml:"root"`
		Kind   string `toml:"kind"`
		Source string `toml:"source"`
	} `toml:"mount"`
}

func applyMounts(fsys *vfs.FS, mountsPath string) {
	if mountsPath == "" {
		return
	}
	if _, err := os.Stat(mountsPath); err != nil {
		log.Debug("no mounts config at %s, starting with no mounts", mountsPath)
		return
	}

	var cfg mountsConfig
	if _, err := toml.DecodeFile(mountsPath, &cfg); err != nil {
		log.Error("loading mounts config %s: %v", mountsPath, err)
		return
	}

	for _, m := range cfg.Mounts {
		switch m.Kind {
		case "directory":
			fsys.AddDirectory(m.Root, m.Source)
		case "pak":
			if err := fsys.AddPAK(m.Root, m.Source); err != nil {
				log.Error("mounting PAK %s: %v", m.Source, err)
			}
		case "pk3":
			if err := fsys.AddPK3(m.Root, m.Source); err != nil {
				log.Error("mounting PK3 %s: %v", m.Source, err)
			}
		default:
			log.Warn("unknown mount kind %q for %s, skipping", m.Kind, m.Source)
		}
	}
}

// registerOperationalCVars installs the operational cvar set beyond the
// built-ins NewRegistry already ships with (dbg_overlay, dbg_movement).
func registerOperationalCVars(r *control.Registry) {
	must := func(_ control.CVarID, err error) {
		if err != nil {
			panic(fmt.Sprintf("registering cvar: %v", err))
		}
	}

	must(r.CVars.Register("dbg_perf_hud", "draw the performance HUD", control.Bool(false), control.Bounds{}, control.FlagDevOnly))
	must(r.CVars.Register("dbg_fps", "draw the FPS counter", control.Bool(false), control.Bounds{}, control.FlagDevOnly))
	must(r.CVars.Register("dbg_frame_time", "draw the frame-time graph", control.Bool(false), control.Bounds{}, control.FlagDevOnly))
	must(r.CVars.Register("dbg_net", "draw net transport debug overlay", control.Bool(false), control.Bounds{}, control.FlagDevOnly))
	must(r.CVars.Register("dbg_jobs", "draw job scheduler debug overlay", control.Bool(false), control.Bounds{}, control.FlagDevOnly))
	must(r.CVars.Register("dbg_assets", "draw asset manager debug overlay", control.Bool(false), control.Bounds{}, control.FlagDevOnly))
	must(r.CVars.Register("dbg_mounts", "draw VFS mount table overlay", control.Bool(false), control.Bounds{}, control.FlagDevOnly))

	must(r.CVars.Register("log_level", "minimum log level (error|warn|info|debug)", control.String("info"), control.Bounds{}, 0))
	must(r.CVars.Register("log_filter", "substring filter dropping matching log lines", control.String(""), control.Bounds{}, 0))

	must(r.CVars.Register("capture_include_overlays", "include debug overlays in screen capture", control.Bool(false), control.Bounds{}, 0))

	must(r.CVars.Register("asset_decode_budget_ms", "per-tick decode budget in ms", control.Int(8), control.Bounds{Set: true, MinI: 0, MaxI: 1 << 30}, 0))
	must(r.CVars.Register("asset_upload_budget_ms", "per-tick upload budget in ms", control.Int(4), control.Bounds{Set: true, MinI: 0, MaxI: 1 << 30}, 0))
	must(r.CVars.Register("asset_io_budget_kb", "per-tick I/O budget in KB", control.Int(4096), control.Bounds{Set: true, MinI: 0, MaxI: 1 << 30}, 0))
}
