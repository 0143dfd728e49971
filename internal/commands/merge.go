package commands

import (
	"encoding/json"
	"reflect"
)

// ApplyUpdate implements the generic field-merge semantics of SPEC_FULL.md
// §4.8: a present key in updates (including an explicit JSON null)
// overwrites the matching field on existing; an absent key leaves it
// untouched. Implemented once, generically, over any JSON-tagged struct
// pointer, and reused by every PUT-style command instead of being
// re-implemented per entity.
func ApplyUpdate(existing any, updates map[string]any) error {
	raw, err := json.Marshal(existing)
	if err != nil {
		return err
	}
	var base map[string]any
	if err := json.Unmarshal(raw, &base); err != nil {
		return err
	}

	for k, v := range updates {
		base[k] = v
	}

	merged, err := json.Marshal(base)
	if err != nil {
		return err
	}
	// Decode into a zero value: decoding a JSON null onto the existing
	// struct would leave a non-pointer field's old value in place.
	target := reflect.ValueOf(existing).Elem()
	fresh := reflect.New(target.Type())
	if err := json.Unmarshal(merged, fresh.Interface()); err != nil {
		return err
	}
	target.Set(fresh.Elem())
	return nil
}
