package types

import "math"

// mapKey is the normalised hash key of a map entry. Int and UInt keys with
// the same mathematical value share a key, so {1: 'a'}[1u] finds the entry.
type mapKey struct {
	kind Kind
	i    int64
	u    uint64
	s    string
}

// keyFor normalises a key used to build a map. Only Int, UInt, Bool and
// String keys are accepted.
func keyFor(k Value) (mapKey, error) {
	switch x := k.(type) {
	case Int:
		if x >= 0 {
			return mapKey{kind: KindUInt, u: uint64(x)}, nil
		}
		return mapKey{kind: KindInt, i: int64(x)}, nil
	case UInt:
		return mapKey{kind: KindUInt, u: uint64(x)}, nil
	case Bool:
		if x {
			return mapKey{kind: KindBool, u: 1}, nil
		}
		return mapKey{kind: KindBool}, nil
	case String:
		return mapKey{kind: KindString, s: string(x)}, nil
	default:
		return mapKey{}, Errorf(ErrUnsupportedKey, "unsupported map key type '%s'", TypeName(k))
	}
}

// lookupKeyFor is like keyFor but additionally maps integral doubles onto
// integer keys. ok is false when k can never match an entry.
func lookupKeyFor(k Value) (mapKey, bool) {
	if d, isDouble := k.(Double); isDouble {
		f := float64(d)
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return mapKey{}, false
		}
		switch {
		case f >= 0 && f < twoTo64:
			return mapKey{kind: KindUInt, u: uint64(f)}, true
		case f < 0 && f >= -twoTo63:
			return mapKey{kind: KindInt, i: int64(f)}, true
		}
		return mapKey{}, false
	}
	key, err := keyFor(k)
	return key, err == nil
}

// Map is an insertion-ordered CEL map. Keys are Int, UInt, Bool or String.
//
// A Map is mutable only while it is being built (Insert, Set). Once handed
// to an evaluation it must be treated as read-only.
type Map struct {
	keys  []Value
	vals  []Value
	index map[mapKey]int
}

// NewMap returns an empty map with room for capacity entries.
func NewMap(capacity int) *Map {
	return &Map{
		keys:  make([]Value, 0, capacity),
		vals:  make([]Value, 0, capacity),
		index: make(map[mapKey]int, capacity),
	}
}

// Insert adds a new entry, failing on unsupported or duplicate keys.
func (m *Map) Insert(k, v Value) error {
	key, err := keyFor(k)
	if err != nil {
		return err
	}
	if _, dup := m.index[key]; dup {
		return Errorf(ErrDuplicateKey, "duplicate map key %s", Repr(k))
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, k)
	m.vals = append(m.vals, v)
	return nil
}

// Set adds or replaces an entry. A replaced entry keeps its original position.
func (m *Map) Set(k, v Value) error {
	key, err := keyFor(k)
	if err != nil {
		return err
	}
	if i, ok := m.index[key]; ok {
		m.vals[i] = v
		return nil
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, k)
	m.vals = append(m.vals, v)
	return nil
}

// Get returns the value stored under k.
func (m *Map) Get(k Value) (Value, bool) {
	if m == nil {
		return nil, false
	}
	key, ok := lookupKeyFor(k)
	if !ok {
		return nil, false
	}
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.vals[i], true
}

// Has reports whether k is present.
func (m *Map) Has(k Value) bool {
	_, ok := m.Get(k)
	return ok
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The returned slice is a copy.
func (m *Map) Keys() List {
	out := make(List, m.Len())
	if m != nil {
		copy(out, m.keys)
	}
	return out
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(k, v Value) bool) {
	if m == nil {
		return
	}
	for i, k := range m.keys {
		if !fn(k, m.vals[i]) {
			return
		}
	}
}
