package store

import (
	"slices"
	"sync"

	"golang.org/x/exp/maps"
)

// MemoryStore is the reference Store implementation: plain maps guarded
// by a mutex. It backs the test suites and small in-process conversions.
type MemoryStore struct {
	mu     sync.RWMutex
	layers map[string]*memLayer
	closed bool
}

type memLayer struct {
	fields []FieldDef
	kind   GeomKind
	feats  map[int64]*Feature
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{layers: make(map[string]*memLayer)}
}

// Layers lists all layer names.
func (m *MemoryStore) Layers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := maps.Keys(m.layers)
	slices.Sort(names)
	return names
}

// HasLayer reports whether the named layer exists.
func (m *MemoryStore) HasLayer(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.layers[name]
	return ok
}

// Schema returns the attribute field names of a layer.
func (m *MemoryStore) Schema(layer string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layers[layer]
	if !ok {
		return nil, LayerNotFoundError("Schema", layer)
	}
	names := make([]string, len(l.fields))
	for i, fd := range l.fields {
		names[i] = fd.Name
	}
	return names, nil
}

// CreateLayer creates a new layer with the given schema.
func (m *MemoryStore) CreateLayer(layer string, fields []FieldDef, kind GeomKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	if _, ok := m.layers[layer]; ok {
		return &StoreError{Op: "CreateLayer", Layer: layer, Cause: ErrLayerExists}
	}
	cp := make([]FieldDef, len(fields))
	copy(cp, fields)
	m.layers[layer] = &memLayer{fields: cp, kind: kind, feats: make(map[int64]*Feature)}
	return nil
}

// DropLayer removes a layer and all its features.
func (m *MemoryStore) DropLayer(layer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.layers[layer]; !ok {
		return LayerNotFoundError("DropLayer", layer)
	}
	delete(m.layers, layer)
	return nil
}

// Features enumerates all features in ascending ID order.
func (m *MemoryStore) Features(layer string) ([]*Feature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layers[layer]
	if !ok {
		return nil, LayerNotFoundError("Features", layer)
	}
	ids := maps.Keys(l.feats)
	slices.Sort(ids)
	result := make([]*Feature, 0, len(ids))
	for _, id := range ids {
		result = append(result, l.feats[id].Clone())
	}
	return result, nil
}

// FeaturesWhere enumerates features whose named attribute equals value.
func (m *MemoryStore) FeaturesWhere(layer, field string, value any) ([]*Feature, error) {
	feats, err := m.Features(layer)
	if err != nil {
		return nil, err
	}
	result := make([]*Feature, 0)
	for _, f := range feats {
		if attrEqual(f.Fields[field], value) {
			result = append(result, f)
		}
	}
	return result, nil
}

// Get returns the feature with the given ID.
func (m *MemoryStore) Get(layer string, id int64) (*Feature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layers[layer]
	if !ok {
		return nil, LayerNotFoundError("Get", layer)
	}
	f, ok := l.feats[id]
	if !ok {
		return nil, FeatureNotFoundError("Get", layer, id)
	}
	return f.Clone(), nil
}

// Create inserts a new feature.
func (m *MemoryStore) Create(layer string, f *Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[layer]
	if !ok {
		return LayerNotFoundError("Create", layer)
	}
	if _, exists := l.feats[f.ID]; exists {
		return &StoreError{Op: "Create", Layer: layer, ID: f.ID, Cause: ErrDuplicateID}
	}
	l.feats[f.ID] = f.Clone()
	return nil
}

// Update persists mutations of an existing feature.
func (m *MemoryStore) Update(layer string, f *Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[layer]
	if !ok {
		return LayerNotFoundError("Update", layer)
	}
	if _, exists := l.feats[f.ID]; !exists {
		return FeatureNotFoundError("Update", layer, f.ID)
	}
	l.feats[f.ID] = f.Clone()
	return nil
}

// Delete removes the feature with the given ID.
func (m *MemoryStore) Delete(layer string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[layer]
	if !ok {
		return LayerNotFoundError("Delete", layer)
	}
	if _, exists := l.feats[id]; !exists {
		return FeatureNotFoundError("Delete", layer, id)
	}
	delete(l.feats, id)
	return nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// attrEqual compares attribute values across the numeric representations
// the drivers produce.
func attrEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			return ai == bi
		}
	}
	if af, ok := toFloat64(a); ok {
		if bf, ok := toFloat64(b); ok {
			return af == bf
		}
	}
	return a == b
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
