package control

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// registerBuiltins installs the commands every Registry ships with:
// help, cvar_list, cvar_get, cvar_set, cmd_list, exec, dev_exec, and the
// two debug-overlay toggles.
func registerBuiltins(r *Registry) {
	must := func(err error) {
		if err != nil {
			panic(err) // programmer error: duplicate built-in name
		}
	}

	must(r.Register(CommandSpec{
		Name: "help", Help: "list commands, or show usage for one",
		Usage: "help [command]",
	}, cmdHelp))

	must(r.Register(CommandSpec{
		Name: "cmd_list", Help: "list all registered commands",
		Usage: "cmd_list",
	}, cmdCommandList))

	must(r.Register(CommandSpec{
		Name: "cvar_list", Help: "list all registered cvars and their current values",
		Usage: "cvar_list",
	}, cmdCVarList))

	must(r.Register(CommandSpec{
		Name: "cvar_get", Help: "print a cvar's current value",
		Usage: "cvar_get <name>",
	}, cmdCVarGet))

	must(r.Register(CommandSpec{
		Name: "cvar_set", Help: "set a cvar's value",
		Usage: "cvar_set <name> <value>",
	}, cmdCVarSet))

	must(r.Register(CommandSpec{
		Name: "exec", Help: "execute a command script, stopping at the first error",
		Usage: "exec <path>",
	}, cmdExec))

	must(r.Register(CommandSpec{
		Name: "dev_exec", Help: "execute a command script, continuing past errors",
		Usage: "dev_exec <path>", Flags: FlagDevOnly,
	}, cmdDevExec))

	must(r.CVars.registerNoErr("dbg_overlay", "draw the debug HUD overlay", Bool(false), Bounds{}, FlagDevOnly))
	must(r.CVars.registerNoErr("dbg_movement", "draw character-motor debug traces", Bool(false), Bounds{}, FlagDevOnly))

	must(r.Register(CommandSpec{
		Name: "dbg_overlay", Help: "toggle or set the debug HUD overlay",
		Usage: "dbg_overlay [0|1]", Flags: FlagDevOnly,
	}, cvarToggleCommand("dbg_overlay")))

	must(r.Register(CommandSpec{
		Name: "dbg_movement", Help: "toggle or set character-motor debug traces",
		Usage: "dbg_movement [0|1]", Flags: FlagDevOnly,
	}, cvarToggleCommand("dbg_movement")))

	registerOperationalSpecs(r)
}

// cvarToggleCommand builds a Handler for a bool-cvar alias command: with
// no argument it prints the current value; with one argument it writes it,
// the way cvar_set does for a single named bool cvar.
func cvarToggleCommand(cvarName string) Handler {
	return func(r *Registry, l Line) (string, error) {
		if len(l.Args) == 0 {
			v, err := r.CVars.GetByName(cvarName)
			if err != nil {
				return "", err
			}
			return v.String(), nil
		}
		if len(l.Args) != 1 {
			return "", fmt.Errorf("control: usage: %s [0|1]", cvarName)
		}
		return "", r.CVars.SetByName(cvarName, l.Args[0])
	}
}

// registerOperationalSpecs installs the wider operational command set:
// asset inspection, capture, settings, config profiles, collision debug,
// player tuning, and input recording. These are registered as bare specs
// with no handler, and the registry has no call that attaches one later;
// dispatching one of them returns an error.
func registerOperationalSpecs(r *Registry) {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	specs := []CommandSpec{
		{Name: "asset_info", Help: "show status/size/version for a loaded asset", Usage: "asset_info <namespace:kind/path>", Flags: FlagDevOnly},
		{Name: "asset_reload", Help: "re-resolve and reload an asset", Usage: "asset_reload <namespace:kind/path>", Flags: FlagDevOnly},
		{Name: "asset_purge", Help: "drop an asset's slot", Usage: "asset_purge <namespace:kind/path>", Flags: FlagDevOnly},
		{Name: "capture_screenshot", Help: "capture the current frame to disk", Usage: "capture_screenshot [path]"},
		{Name: "settings_save", Help: "persist current cvars to the user config root", Usage: "settings_save"},
		{Name: "settings_reset", Help: "reset all non-cheat cvars to their defaults", Usage: "settings_reset"},
		{Name: "config_profile_save", Help: "save the current cvar set as a named profile", Usage: "config_profile_save <name>", Flags: FlagDevOnly},
		{Name: "config_profile_load", Help: "load a previously saved cvar profile", Usage: "config_profile_load <name>", Flags: FlagDevOnly},
		{Name: "collision_debug", Help: "dump the collision world's quadtree/BVH summary", Usage: "collision_debug [map-id]", Flags: FlagDevOnly},
		{Name: "player_tune", Help: "inspect or adjust the active character motor's config", Usage: "player_tune [field] [value]", Flags: FlagDevOnly},
		{Name: "input_record_start", Help: "begin recording input commands to a file", Usage: "input_record_start <path>", Flags: FlagDevOnly},
		{Name: "input_record_stop", Help: "stop the active input recording", Usage: "input_record_stop", Flags: FlagDevOnly},
		{Name: "input_playback", Help: "replay a recorded input command file", Usage: "input_playback <path>", Flags: FlagDevOnly},
	}
	for _, spec := range specs {
		must(r.Register(spec, nil))
	}
}

// registerNoErr is a thin convenience wrapper so registerBuiltins can use
// the same must() pattern for cvars as for commands.
func (c *CVarRegistry) registerNoErr(name, desc string, def Value, bounds Bounds, flags Flag) error {
	_, err := c.Register(name, desc, def, bounds, flags)
	return err
}

func cmdHelp(r *Registry, l Line) (string, error) {
	if len(l.Args) == 0 {
		var b strings.Builder
		for _, spec := range r.List() {
			fmt.Fprintf(&b, "%-16s %s\n", spec.Name, spec.Help)
		}
		return b.String(), nil
	}

	for _, spec := range r.List() {
		if spec.Name == l.Args[0] {
			return fmt.Sprintf("%s\n\n  %s\n\nusage: %s\n", spec.Name, spec.Help, spec.Usage), nil
		}
	}
	return "", fmt.Errorf("control: no such command %q", l.Args[0])
}

func cmdCommandList(r *Registry, l Line) (string, error) {
	var b strings.Builder
	tw := tablewriter.NewWriter(&b)
	tw.SetHeader([]string{"Name", "Usage", "Help"})
	for _, spec := range r.List() {
		tw.Append([]string{spec.Name, spec.Usage, spec.Help})
	}
	tw.Render()
	return b.String(), nil
}

func cmdCVarList(r *Registry, l Line) (string, error) {
	var b strings.Builder
	tw := tablewriter.NewWriter(&b)
	tw.SetHeader([]string{"Name", "Type", "Value", "Default", "Flags"})
	for _, info := range r.CVars.List() {
		if info.Flags.Has(FlagDevOnly) && !r.devMode {
			continue
		}
		tw.Append([]string{
			info.Name, info.Kind.String(), info.Current.String(), info.Default.String(),
			flagString(info.Flags),
		})
	}
	tw.Render()
	return b.String(), nil
}

func flagString(f Flag) string {
	var parts []string
	if f.Has(FlagCheat) {
		parts = append(parts, "cheat")
	}
	if f.Has(FlagReadOnly) {
		parts = append(parts, "readonly")
	}
	if f.Has(FlagNoPersist) {
		parts = append(parts, "nopersist")
	}
	if f.Has(FlagDevOnly) {
		parts = append(parts, "devonly")
	}
	return strings.Join(parts, ",")
}

func cmdCVarGet(r *Registry, l Line) (string, error) {
	if len(l.Args) != 1 {
		return "", fmt.Errorf("control: usage: cvar_get <name>")
	}
	v, err := r.CVars.GetByName(l.Args[0])
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func cmdCVarSet(r *Registry, l Line) (string, error) {
	if len(l.Args) != 2 {
		return "", fmt.Errorf("control: usage: cvar_set <name> <value>")
	}
	if err := r.CVars.SetByName(l.Args[0], l.Args[1]); err != nil {
		return "", err
	}
	return "", nil
}

func cmdExec(r *Registry, l Line) (string, error) {
	if len(l.Args) != 1 {
		return "", fmt.Errorf("control: usage: exec <path>")
	}
	return "", r.ExecFile(l.Args[0])
}

func cmdDevExec(r *Registry, l Line) (string, error) {
	if len(l.Args) != 1 {
		return "", fmt.Errorf("control: usage: dev_exec <path>")
	}
	failures, err := r.DevExecFile(l.Args[0])
	if err != nil {
		return "", err
	}
	if failures > 0 {
		return fmt.Sprintf("%d line(s) failed", failures), nil
	}
	return "", nil
}
