package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// PostgresStore implements Store on a Postgres database, for teams that
// stage schematisations in a shared database instead of a file. Layers
// are plain tables with a bigint id primary key and geometries stored as
// WKB bytea. The pool is created once and owned by the store.
type PostgresStore struct {
	ctx     context.Context
	pool    *pgxpool.Pool
	schemas map[string][]FieldDef
}

// OpenPostgres connects to the given DSN. The context bounds the whole
// store lifetime; a one-shot batch run passes its run context.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{ctx: ctx, pool: pool, schemas: make(map[string][]FieldDef)}, nil
}

// Layers lists the public tables that carry an id column.
func (s *PostgresStore) Layers() []string {
	rows, err := s.pool.Query(s.ctx,
		`SELECT table_name FROM information_schema.columns
		 WHERE table_schema = 'public' AND column_name = 'id'
		 ORDER BY table_name`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			names = append(names, name)
		}
	}
	return names
}

// HasLayer reports whether the named layer exists.
func (s *PostgresStore) HasLayer(name string) bool {
	var n int
	err := s.pool.QueryRow(s.ctx,
		`SELECT count(*) FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_name = $1`, name).Scan(&n)
	return err == nil && n > 0
}

func (s *PostgresStore) layerSchema(layer string) ([]FieldDef, error) {
	if cached, ok := s.schemas[layer]; ok {
		return cached, nil
	}
	if !s.HasLayer(layer) {
		return nil, LayerNotFoundError("Schema", layer)
	}
	rows, err := s.pool.Query(s.ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`, layer)
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", layer, err)
	}
	defer rows.Close()
	var fields []FieldDef
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, err
		}
		if name == "id" || name == "geom" {
			continue
		}
		fields = append(fields, FieldDef{Name: name, Type: pgTypeToFieldType(dataType)})
	}
	s.schemas[layer] = fields
	return fields, nil
}

func pgTypeToFieldType(dataType string) FieldType {
	switch dataType {
	case "bigint", "integer", "smallint":
		return TypeInt
	case "double precision", "real", "numeric":
		return TypeFloat
	case "boolean":
		return TypeBool
	default:
		return TypeString
	}
}

// Schema returns the attribute field names of a layer.
func (s *PostgresStore) Schema(layer string) ([]string, error) {
	fields, err := s.layerSchema(layer)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(fields))
	for i, fd := range fields {
		names[i] = fd.Name
	}
	return names, nil
}

func pgFieldType(t FieldType) string {
	switch t {
	case TypeInt:
		return "BIGINT"
	case TypeFloat:
		return "DOUBLE PRECISION"
	case TypeBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// CreateLayer creates a feature table.
func (s *PostgresStore) CreateLayer(layer string, fields []FieldDef, kind GeomKind) error {
	if s.HasLayer(layer) {
		return &StoreError{Op: "CreateLayer", Layer: layer, Cause: ErrLayerExists}
	}
	cols := []string{`id BIGINT PRIMARY KEY`}
	for _, fd := range fields {
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(fd.Name), pgFieldType(fd.Type)))
	}
	if kind != GeomNone {
		cols = append(cols, `geom BYTEA`)
	}
	ddl := fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(layer), strings.Join(cols, ", "))
	if _, err := s.pool.Exec(s.ctx, ddl); err != nil {
		return fmt.Errorf("create layer %s: %w", layer, err)
	}
	delete(s.schemas, layer)
	return nil
}

// DropLayer removes a layer table.
func (s *PostgresStore) DropLayer(layer string) error {
	if !s.HasLayer(layer) {
		return LayerNotFoundError("DropLayer", layer)
	}
	if _, err := s.pool.Exec(s.ctx, fmt.Sprintf(`DROP TABLE %s`, quoteIdent(layer))); err != nil {
		return fmt.Errorf("drop layer %s: %w", layer, err)
	}
	delete(s.schemas, layer)
	return nil
}

func (s *PostgresStore) hasGeomColumn(layer string) bool {
	var n int
	err := s.pool.QueryRow(s.ctx,
		`SELECT count(*) FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1 AND column_name = 'geom'`,
		layer).Scan(&n)
	return err == nil && n > 0
}

func (s *PostgresStore) selectFeatures(layer, where string, args ...any) ([]*Feature, error) {
	fields, err := s.layerSchema(layer)
	if err != nil {
		return nil, err
	}
	hasGeom := s.hasGeomColumn(layer)
	cols := []string{"id"}
	for _, fd := range fields {
		cols = append(cols, quoteIdent(fd.Name))
	}
	if hasGeom {
		cols = append(cols, "geom")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s`, strings.Join(cols, ", "), quoteIdent(layer))
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY id"
	rows, err := s.pool.Query(s.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", layer, err)
	}
	defer rows.Close()

	var result []*Feature
	for rows.Next() {
		dest := make([]any, len(cols))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", layer, err)
		}
		f := NewFeature(0)
		if id, ok := toInt64(*(dest[0].(*any))); ok {
			f.ID = id
		}
		for i, fd := range fields {
			f.Fields[fd.Name] = normalizeSQLValue(*(dest[i+1].(*any)))
		}
		if hasGeom {
			raw := *(dest[len(cols)-1].(*any))
			if blob, ok := raw.([]byte); ok && len(blob) > 0 {
				t, err := wkb.Unmarshal(blob)
				if err != nil {
					return nil, &StoreError{Op: "Decode", Layer: layer, ID: f.ID, Cause: err}
				}
				g, err := fromGeomT(t)
				if err != nil {
					return nil, &StoreError{Op: "Decode", Layer: layer, ID: f.ID, Cause: err}
				}
				f.Geom = g
			}
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

// Features enumerates all features in ascending ID order.
func (s *PostgresStore) Features(layer string) ([]*Feature, error) {
	return s.selectFeatures(layer, "")
}

// FeaturesWhere enumerates features whose named attribute equals value.
func (s *PostgresStore) FeaturesWhere(layer, field string, value any) ([]*Feature, error) {
	return s.selectFeatures(layer, quoteIdent(field)+" = $1", value)
}

// Get returns the feature with the given ID.
func (s *PostgresStore) Get(layer string, id int64) (*Feature, error) {
	feats, err := s.selectFeatures(layer, "id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(feats) == 0 {
		return nil, FeatureNotFoundError("Get", layer, id)
	}
	return feats[0], nil
}

func (s *PostgresStore) writeArgs(layer string, f *Feature) ([]string, []any, error) {
	fields, err := s.layerSchema(layer)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	for _, fd := range fields {
		names = append(names, fd.Name)
		args = append(args, f.Fields[fd.Name])
	}
	if s.hasGeomColumn(layer) {
		var blob []byte
		if f.Geom != nil {
			t, err := toGeomT(f.Geom)
			if err != nil {
				return nil, nil, &StoreError{Op: "Encode", Layer: layer, ID: f.ID, Cause: err}
			}
			blob, err = wkb.Marshal(t, binary.LittleEndian)
			if err != nil {
				return nil, nil, &StoreError{Op: "Encode", Layer: layer, ID: f.ID, Cause: err}
			}
		}
		names = append(names, "geom")
		args = append(args, blob)
	}
	return names, args, nil
}

// Create inserts a new feature.
func (s *PostgresStore) Create(layer string, f *Feature) error {
	names, args, err := s.writeArgs(layer, f)
	if err != nil {
		return err
	}
	cols := []string{"id"}
	marks := []string{"$1"}
	for i, n := range names {
		cols = append(cols, quoteIdent(n))
		marks = append(marks, fmt.Sprintf("$%d", i+2))
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		quoteIdent(layer), strings.Join(cols, ", "), strings.Join(marks, ", "))
	if _, err := s.pool.Exec(s.ctx, query, append([]any{f.ID}, args...)...); err != nil {
		return &StoreError{Op: "Create", Layer: layer, ID: f.ID, Cause: err}
	}
	return nil
}

// Update persists mutations of an existing feature.
func (s *PostgresStore) Update(layer string, f *Feature) error {
	names, args, err := s.writeArgs(layer, f)
	if err != nil {
		return err
	}
	sets := make([]string, len(names))
	for i, n := range names {
		sets[i] = fmt.Sprintf("%s = $%d", quoteIdent(n), i+1)
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`,
		quoteIdent(layer), strings.Join(sets, ", "), len(names)+1)
	tag, err := s.pool.Exec(s.ctx, query, append(args, f.ID)...)
	if err != nil {
		return &StoreError{Op: "Update", Layer: layer, ID: f.ID, Cause: err}
	}
	if tag.RowsAffected() == 0 {
		return FeatureNotFoundError("Update", layer, f.ID)
	}
	return nil
}

// Delete removes the feature with the given ID.
func (s *PostgresStore) Delete(layer string, id int64) error {
	if !s.HasLayer(layer) {
		return LayerNotFoundError("Delete", layer)
	}
	tag, err := s.pool.Exec(s.ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, quoteIdent(layer)), id)
	if err != nil {
		return &StoreError{Op: "Delete", Layer: layer, ID: id, Cause: err}
	}
	if tag.RowsAffected() == 0 {
		return FeatureNotFoundError("Delete", layer, id)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// queryRowNotFound maps pgx.ErrNoRows onto the store sentinel.
func queryRowNotFound(err error, op, layer string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return FeatureNotFoundError(op, layer, id)
	}
	return err
}
