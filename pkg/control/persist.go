package control

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// ApplyValueMap writes a generic name→value map (the decoded cvars config
// file) into the registry. Each value is coerced to its cvar's registered
// type with mapstructure's weak decoding, so a TOML integer can land in a
// float cvar and "1" in a bool. Unknown names and rejected writes are
// collected and returned; the rest of the map still applies. Names are
// visited in sorted order so the resulting dirty set is deterministic.
func (r *CVarRegistry) ApplyValueMap(values map[string]any) []error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		current, err := r.GetByName(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		v, err := coerceValue(current.Kind, values[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("control: cvar %q: %w", name, err))
			continue
		}
		if err := r.SetValueByName(name, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func coerceValue(kind ValueKind, raw any) (Value, error) {
	decode := func(out any) error {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           out,
		})
		if err != nil {
			return err
		}
		return dec.Decode(raw)
	}

	switch kind {
	case KindBool:
		var b bool
		if err := decode(&b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case KindInt:
		var i int32
		if err := decode(&i); err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case KindFloat:
		var f float32
		if err := decode(&f); err != nil {
			return Value{}, err
		}
		return Float(f), nil
	default:
		var s string
		if err := decode(&s); err != nil {
			return Value{}, err
		}
		return String(s), nil
	}
}
