// Package store defines the mutable feature-store contract the converter
// writes to and the graph compactor edits: named layers of features with
// typed attribute fields and an optional geometry. Three implementations
// are provided (in-memory, GeoPackage, Postgres); the compactor never
// depends on which one it is handed.
package store

import (
	"fmt"

	"github.com/waterschap/hydroconv/pkg/geometry"
)

// FieldType enumerates the attribute types a layer schema can carry.
type FieldType uint8

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeBool
)

// String returns the SQL-ish name of the field type.
func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "TEXT"
	case TypeInt:
		return "INTEGER"
	case TypeFloat:
		return "REAL"
	case TypeBool:
		return "BOOLEAN"
	default:
		return "UNKNOWN"
	}
}

// FieldDef describes one attribute column of a layer.
type FieldDef struct {
	Name string
	Type FieldType
}

// GeomKind enumerates the geometry kinds a layer can hold.
type GeomKind uint8

const (
	GeomNone GeomKind = iota
	GeomPoint
	GeomLineString
)

// Feature is one record in a layer. ID doubles as the layer's primary
// key and the value of its "id" attribute. Attribute values are nil,
// string, int64, float64 or bool.
type Feature struct {
	ID     int64
	Fields map[string]any
	Geom   geometry.Geometry
}

// NewFeature creates an empty feature with the given ID.
func NewFeature(id int64) *Feature {
	return &Feature{ID: id, Fields: make(map[string]any)}
}

// Clone creates a deep copy of the feature. Geometries are immutable
// values in this codebase so the geometry is shared.
func (f *Feature) Clone() *Feature {
	clone := &Feature{
		ID:     f.ID,
		Fields: make(map[string]any, len(f.Fields)),
		Geom:   f.Geom,
	}
	for k, v := range f.Fields {
		clone.Fields[k] = v
	}
	return clone
}

// Int64 reads an attribute as int64, coercing the numeric types the SQL
// drivers hand back.
func (f *Feature) Int64(name string) (int64, bool) {
	v, ok := f.Fields[name]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Float64 reads an attribute as float64.
func (f *Feature) Float64(name string) (float64, bool) {
	v, ok := f.Fields[name]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Str reads an attribute as string.
func (f *Feature) Str(name string) (string, bool) {
	v, ok := f.Fields[name]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set assigns an attribute value.
func (f *Feature) Set(name string, value any) {
	if f.Fields == nil {
		f.Fields = make(map[string]any)
	}
	f.Fields[name] = value
}

// Store is the feature-store contract from the collaborator's point of
// view: everything the conversion pipeline and the compactor need, and
// nothing driver-specific.
type Store interface {
	// Layers lists all layer names.
	Layers() []string
	// HasLayer reports whether the named layer exists.
	HasLayer(name string) bool
	// Schema returns the attribute field names of a layer.
	Schema(layer string) ([]string, error)
	// CreateLayer creates a new layer with the given schema. The "id"
	// column is implicit and must not appear in fields.
	CreateLayer(layer string, fields []FieldDef, kind GeomKind) error
	// DropLayer removes a layer and all its features.
	DropLayer(layer string) error
	// Features enumerates all features of a layer in ascending ID order.
	Features(layer string) ([]*Feature, error)
	// FeaturesWhere enumerates features whose named attribute equals the
	// given value.
	FeaturesWhere(layer, field string, value any) ([]*Feature, error)
	// Get returns the feature with the given ID, or ErrFeatureNotFound.
	Get(layer string, id int64) (*Feature, error)
	// Create inserts a new feature.
	Create(layer string, f *Feature) error
	// Update persists field and geometry mutations of an existing feature.
	Update(layer string, f *Feature) error
	// Delete removes the feature with the given ID. Subsequent Gets for
	// that ID return ErrFeatureNotFound.
	Delete(layer string, id int64) error
	// Close releases the underlying resources.
	Close() error
}

// MaxID returns the highest feature ID in a layer, or 0 for an empty
// layer. Used by the importers to continue ID allocation where the
// target schematisation left off.
func MaxID(s Store, layer string) (int64, error) {
	feats, err := s.Features(layer)
	if err != nil {
		return 0, err
	}
	var max int64
	for _, f := range feats {
		if f.ID > max {
			max = f.ID
		}
	}
	return max, nil
}

// ClearLayer deletes every feature in a layer.
func ClearLayer(s Store, layer string) (int, error) {
	feats, err := s.Features(layer)
	if err != nil {
		return 0, err
	}
	for _, f := range feats {
		if err := s.Delete(layer, f.ID); err != nil {
			return 0, fmt.Errorf("clear %s: %w", layer, err)
		}
	}
	return len(feats), nil
}
