// Package keymap holds the picker's keyboard bindings and checks them for
// conflicts before the interface comes up.
package keymap

import (
	"fmt"
	"sort"
	"strings"
)

// Bindings maps picker actions to key names. Weight, polarity and onset are
// chorded: the listed keys select the value while the corresponding mode is
// active.
type Bindings struct {
	SetPick             string
	SetPickError        string
	DeletePick          string
	SetMagMin           string
	SetMagMax           string
	DeleteMagMinMax     string
	SwitchPhase         string
	PrevStream          string
	NextStream          string
	SwitchWheelZoomAxis string

	SetWeight   map[string]int
	SetPolarity map[string]string
	SetOnset    map[string]string
}

// Default returns the stock bindings. Pick keys and magnitude keys reuse the
// same letters on purpose: the two sets are active in different modes.
func Default() Bindings {
	return Bindings{
		SetPick:             "a",
		SetPickError:        "s",
		DeletePick:          "q",
		SetMagMin:           "a",
		SetMagMax:           "s",
		DeleteMagMinMax:     "q",
		SwitchPhase:         "control",
		PrevStream:          "y",
		NextStream:          "x",
		SwitchWheelZoomAxis: "shift",
		SetWeight:           map[string]int{"0": 0, "1": 1, "2": 2, "3": 3},
		SetPolarity: map[string]string{
			"u": "positive", "+": "positive",
			"d": "negative", "-": "negative",
		},
		SetOnset: map[string]string{"i": "impulsive", "e": "emergent"},
	}
}

// CheckConflicts verifies no key is bound to two actions. The check runs
// twice, each time ignoring one of the two mode-local sets (pick keys,
// magnitude keys), because those are allowed to share keys with each other.
func (b Bindings) CheckConflicts() error {
	flat := b.flatten()

	for _, ignored := range [][]string{
		{"setMagMin", "setMagMax", "delMagMinMax"},
		{"setPick", "setPickError", "delPick"},
	} {
		remaining := make(map[string]string, len(flat))
		for action, key := range flat {
			skip := false
			for _, ig := range ignored {
				if action == ig {
					skip = true
					break
				}
			}
			if !skip {
				remaining[action] = key
			}
		}
		keys := make(map[string]bool, len(remaining))
		for _, key := range remaining {
			keys[key] = true
		}
		if len(keys) != len(remaining) {
			return fmt.Errorf("interfering keybindings, please check the bindings table")
		}
	}
	return nil
}

// flatten expands the chorded maps into per-value actions, e.g.
// "setWeight_2" -> "2".
func (b Bindings) flatten() map[string]string {
	flat := map[string]string{
		"setPick":             b.SetPick,
		"setPickError":        b.SetPickError,
		"delPick":             b.DeletePick,
		"setMagMin":           b.SetMagMin,
		"setMagMax":           b.SetMagMax,
		"delMagMinMax":        b.DeleteMagMinMax,
		"switchPhase":         b.SwitchPhase,
		"prevStream":          b.PrevStream,
		"nextStream":          b.NextStream,
		"switchWheelZoomAxis": b.SwitchWheelZoomAxis,
	}
	for key, weight := range b.SetWeight {
		flat[fmt.Sprintf("setWeight_%d", weight)] = key
	}
	for key, pol := range b.SetPolarity {
		flat["setPol_"+pol+"_"+key] = key
	}
	for key, onset := range b.SetOnset {
		flat["setOnset_"+onset] = key
	}
	return flat
}

// String renders the binding table for --keys output.
func (b Bindings) String() string {
	flat := b.flatten()
	actions := make([]string, 0, len(flat))
	for action := range flat {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	var sb strings.Builder
	for _, action := range actions {
		fmt.Fprintf(&sb, "%-24s %s\n", action, flat[action])
	}
	return sb.String()
}
