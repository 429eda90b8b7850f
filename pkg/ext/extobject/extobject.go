// Package extobject provides extended map functions beyond the CEL standard
// library. Results keep the insertion order of their source maps.
package extobject

import (
	"context"

	"github.com/sandrolain/gocel/pkg/ext/extutil"
	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

const (
	m    = types.KindMap
	list = types.KindList
)

// All returns all extended map overloads.
func All() []functions.Overload {
	return extutil.Concat(
		Keys(),
		Values(),
		Pairs(),
		FromPairs(),
		Pick(),
		Omit(),
		Merge(),
		Invert(),
		Rename(),
	)
}

func asMap(v types.Value) *types.Map {
	return v.(*types.Map)
}

// Keys returns the overload for map.keys().
func Keys() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		return asMap(args[0]).Keys(), nil
	}
	return []functions.Overload{extutil.Method("keys", "map_keys", fn, m)}
}

// Values returns the overload for map.values().
func Values() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		src := asMap(args[0])
		out := make(types.List, 0, src.Len())
		src.Range(func(_, v types.Value) bool {
			out = append(out, v)
			return true
		})
		return out, nil
	}
	return []functions.Overload{extutil.Method("values", "map_values", fn, m)}
}

// Pairs returns the overload for map.pairs(), a list of [key, value] lists.
func Pairs() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		src := asMap(args[0])
		out := make(types.List, 0, src.Len())
		src.Range(func(k, v types.Value) bool {
			out = append(out, types.List{k, v})
			return true
		})
		return out, nil
	}
	return []functions.Overload{extutil.Method("pairs", "map_pairs", fn, m)}
}

// FromPairs returns the overload for maps.fromPairs(list). Later pairs
// override earlier ones with the same key.
func FromPairs() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		pairs := args[0].(types.List)
		out := types.NewMap(len(pairs))
		for k, p := range pairs {
			pair, ok := p.(types.List)
			if !ok || len(pair) != 2 {
				return nil, extutil.Errorf("maps.fromPairs", "element %d is not a [key, value] pair", k)
			}
			if err := out.Set(pair[0], pair[1]); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return []functions.Overload{extutil.Global("maps.fromPairs", "maps_from_pairs", fn, list)}
}

func filterKeys(name string, keep bool) []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		src, keys := asMap(args[0]), args[1].(types.List)
		selected := types.NewMap(len(keys))
		for _, k := range keys {
			if err := selected.Set(k, types.NullValue); err != nil {
				return nil, err
			}
		}
		out := types.NewMap(src.Len())
		var err error
		src.Range(func(k, v types.Value) bool {
			if selected.Has(k) == keep {
				err = out.Insert(k, v)
			}
			return err == nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return []functions.Overload{extutil.Method(name, "map_"+name, fn, m, list)}
}

// Pick returns the overload for map.pick(keys): only the listed keys.
func Pick() []functions.Overload {
	return filterKeys("pick", true)
}

// Omit returns the overload for map.omit(keys): every key but the listed ones.
func Omit() []functions.Overload {
	return filterKeys("omit", false)
}

// Merge returns the overload for a.merge(b). Nested maps present on both
// sides are merged recursively; otherwise b wins.
func Merge() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		return deepMerge(asMap(args[0]), asMap(args[1]))
	}
	return []functions.Overload{extutil.Method("merge", "map_merge", fn, m, m)}
}

func deepMerge(dst, src *types.Map) (*types.Map, error) {
	out := types.NewMap(dst.Len() + src.Len())
	var err error
	dst.Range(func(k, v types.Value) bool {
		err = out.Insert(k, v)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	src.Range(func(k, v types.Value) bool {
		if srcMap, ok := v.(*types.Map); ok {
			if cur, found := out.Get(k); found {
				if dstMap, ok := cur.(*types.Map); ok {
					v, err = deepMerge(dstMap, srcMap)
					if err != nil {
						return false
					}
				}
			}
		}
		err = out.Set(k, v)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Invert returns the overload for map.invert(). Values become keys, so they
// must be valid map keys; a repeated value keeps its last key.
func Invert() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		src := asMap(args[0])
		out := types.NewMap(src.Len())
		var err error
		src.Range(func(k, v types.Value) bool {
			err = out.Set(v, k)
			return err == nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return []functions.Overload{extutil.Method("invert", "map_invert", fn, m)}
}

// Rename returns the overload for map.rename(mapping). Keys found in mapping
// are replaced by the mapped key.
func Rename() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		src, mapping := asMap(args[0]), asMap(args[1])
		out := types.NewMap(src.Len())
		var err error
		src.Range(func(k, v types.Value) bool {
			if renamed, ok := mapping.Get(k); ok {
				k = renamed
			}
			err = out.Set(k, v)
			return err == nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return []functions.Overload{extutil.Method("rename", "map_rename", fn, m, m)}
}
