package scenario

import (
	"fmt"
	"reflect"
	"time"

	"github.com/newthinker/btsweep/internal/core"
)

// Constraint reports whether a scene should be kept.
type Constraint func(Scene) bool

// FastBelowSlow keeps scenes whose fast SMA period is shorter than the slow one.
func FastBelowSlow(s Scene) bool {
	return s.SMAFast < s.SMASlow
}

// Expand builds every combination of the set's values. excluded_dates is
// never expanded; it is attached whole to every scene. The last parameter
// varies fastest.
func Expand(set *Set, constraints ...Constraint) ([]Scene, error) {
	names := set.Names()
	excluded, _ := set.Value("excluded_dates")

	var axes []string
	var choices [][]any
	for _, n := range names {
		if n == "excluded_dates" {
			continue
		}
		v, _ := set.Value(n)
		opts := iterize(v)
		if len(opts) == 0 {
			return nil, nil
		}
		axes = append(axes, n)
		choices = append(choices, opts)
	}

	var scenes []Scene
	idx := make([]int, len(axes))
	for {
		combo := make(map[string]any, len(names))
		for i, n := range axes {
			combo[n] = choices[i][idx[i]]
		}
		combo["excluded_dates"] = normalize(excluded)

		scene, err := newScene(names, combo)
		if err != nil {
			return nil, fmt.Errorf("scene %d: %w", len(scenes)+1, err)
		}
		if keep(scene, constraints) {
			scenes = append(scenes, scene)
		}

		// odometer step, last axis first
		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(choices[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return scenes, nil
}

// Count returns the number of raw combinations before constraints.
func Count(set *Set) int {
	total := 1
	for _, n := range set.Names() {
		if n == "excluded_dates" {
			continue
		}
		v, _ := set.Value(n)
		total *= len(iterize(v))
	}
	return total
}

func keep(s Scene, constraints []Constraint) bool {
	for _, c := range constraints {
		if !c(s) {
			return false
		}
	}
	return true
}

// iterize turns a value into its list of choices. Strings and other scalars
// are single choices.
func iterize(v any) []any {
	if v == nil {
		return []any{nil}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if _, ok := v.([]byte); ok {
			return []any{v}
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	default:
		return []any{normalize(v)}
	}
}

// normalize turns decoded YAML timestamps back into date strings.
func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(core.DateLayout)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}
