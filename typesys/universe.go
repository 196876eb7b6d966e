package typesys

import (
	"fmt"
	"sort"
	"sync"
)

// Universe is an in-memory Oracle populated from type declarations.
// A Universe is safe for concurrent use.
type Universe struct {
	mu    sync.RWMutex
	types map[ID]*TypeInfo
}

// NewUniverse creates a universe that already knows the object type.
func NewUniverse() *Universe {
	u := &Universe{types: make(map[ID]*TypeInfo)}
	u.types[Object] = &TypeInfo{ID: Object, Kind: KindClass, Public: true,
		Constructors: []Method{{Access: AccessPublic}}}
	return u
}

// Define adds a type. Defining the same ID twice is an error.
func (u *Universe) Define(info *TypeInfo) error {
	if info == nil || info.ID == "" {
		return ErrEmptyTypeID
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, exists := u.types[info.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, info.ID)
	}
	u.types[info.ID] = info
	return nil
}

// MustDefine is Define that panics on error. Intended for tests and fixtures.
func (u *Universe) MustDefine(infos ...*TypeInfo) *Universe {
	for _, info := range infos {
		if err := u.Define(info); err != nil {
			panic(err)
		}
	}
	return u
}

// TaskOf returns the task-like type wrapping elem, defining it on first use.
func (u *Universe) TaskOf(elem ID) ID {
	id := ID("Task<" + string(elem) + ">")
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.types[id]; !ok {
		u.types[id] = &TypeInfo{ID: id, Kind: KindTask, Public: true, Elem: elem,
			Definition: "Task<>", Args: []ID{elem}}
	}
	return id
}

// NullableOf returns the nullable type wrapping elem, defining it on first use.
func (u *Universe) NullableOf(elem ID) ID {
	id := ID(string(elem) + "?")
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.types[id]; !ok {
		u.types[id] = &TypeInfo{ID: id, Kind: KindNullable, Public: true, Elem: elem,
			Definition: "Nullable<>", Args: []ID{elem}}
	}
	return id
}

// Info implements Oracle.
func (u *Universe) Info(id ID) (*TypeInfo, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	info, ok := u.types[id]
	return info, ok
}

// IDs returns all known type IDs in sorted order.
func (u *Universe) IDs() []ID {
	u.mu.RLock()
	defer u.mu.RUnlock()
	ids := make([]ID, 0, len(u.types))
	for id := range u.types {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Conversion implements Oracle.
func (u *Universe) Conversion(from, to ID) Conversion {
	if from == to {
		return ConversionIdentity
	}
	src, ok := u.Info(from)
	if !ok {
		return ConversionNone
	}
	dst, ok := u.Info(to)
	if !ok {
		return ConversionNone
	}

	if dst.Kind == KindNullable && dst.Elem == from && src.IsValueType() {
		return ConversionNullable
	}

	reaches := to == Object || u.supertypes(from)[to]
	if !reaches {
		return ConversionNone
	}
	if src.IsValueType() {
		if dst.Kind == KindInterface || to == Object {
			return ConversionBoxing
		}
		return ConversionNone
	}
	return ConversionImplicitReference
}

// supertypes returns the transitive base types and interfaces of id.
func (u *Universe) supertypes(id ID) map[ID]bool {
	out := make(map[ID]bool)
	var walk func(ID)
	walk = func(cur ID) {
		info, ok := u.Info(cur)
		if !ok {
			return
		}
		for _, i := range info.Interfaces {
			if !out[i] {
				out[i] = true
				walk(i)
			}
		}
		if info.Base != "" && !out[info.Base] {
			out[info.Base] = true
			walk(info.Base)
		}
	}
	walk(id)
	return out
}
