package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"strings"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	_ "github.com/mattn/go-sqlite3"

	"github.com/waterschap/hydroconv/pkg/geometry"
)

// gpkgHeaderMagic is the GeoPackage geometry blob magic ("GP").
var gpkgHeaderMagic = [2]byte{0x47, 0x50}

// GeoPackageStore implements Store on a GeoPackage file. A GeoPackage is
// a SQLite database with a small amount of registry metadata; features
// live one table per layer with an INTEGER PRIMARY KEY id column and a
// geometry blob (standard GeoPackage header + WKB).
type GeoPackageStore struct {
	db    *sql.DB
	srsID int32
	// schema cache, invalidated on CreateLayer/DropLayer
	schemas map[string][]FieldDef
}

// OpenGeoPackage opens (or creates) a GeoPackage file. srsID is the
// EPSG code written into geometry blobs and layer registrations.
func OpenGeoPackage(path string, srsID int32) (*GeoPackageStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open geopackage %s: %w", path, err)
	}
	s := &GeoPackageStore{db: db, srsID: srsID, schemas: make(map[string][]FieldDef)}
	if err := s.ensureMetaTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *GeoPackageStore) ensureMetaTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT)`,
		`CREATE TABLE IF NOT EXISTS gpkg_contents (
			table_name TEXT PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT UNIQUE,
			description TEXT DEFAULT '',
			last_change DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
			srs_id INTEGER)`,
		`CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL,
			CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name))`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("geopackage metadata: %w", err)
		}
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO gpkg_spatial_ref_sys
		 (srs_name, srs_id, organization, organization_coordsys_id, definition)
		 VALUES (?, ?, 'EPSG', ?, 'undefined')`,
		fmt.Sprintf("EPSG:%d", s.srsID), s.srsID, s.srsID)
	return err
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Layers lists the layers registered in gpkg_contents plus any plain
// attribute tables created through this store.
func (s *GeoPackageStore) Layers() []string {
	rows, err := s.db.Query(`SELECT table_name FROM gpkg_contents ORDER BY table_name`)
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

// HasLayer reports whether the named layer exists as a table.
func (s *GeoPackageStore) HasLayer(name string) bool {
	var n int
	err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	return err == nil && n > 0
}

// layerSchema returns the attribute columns of a layer, excluding the id
// primary key and the geometry column.
func (s *GeoPackageStore) layerSchema(layer string) ([]FieldDef, error) {
	if cached, ok := s.schemas[layer]; ok {
		return cached, nil
	}
	if !s.HasLayer(layer) {
		return nil, LayerNotFoundError("Schema", layer)
	}
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(layer)))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", layer, err)
	}
	defer rows.Close()
	var fields []FieldDef
	for rows.Next() {
		var (
			cid     int
			name    string
			decl    string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &decl, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		if name == "id" || name == "geom" {
			continue
		}
		fields = append(fields, FieldDef{Name: name, Type: declToFieldType(decl)})
	}
	s.schemas[layer] = fields
	return fields, nil
}

func declToFieldType(decl string) FieldType {
	switch strings.ToUpper(decl) {
	case "INTEGER", "INT", "MEDIUMINT", "TINYINT":
		return TypeInt
	case "REAL", "DOUBLE", "FLOAT":
		return TypeFloat
	case "BOOLEAN":
		return TypeBool
	default:
		return TypeString
	}
}

// Schema returns the attribute field names of a layer.
func (s *GeoPackageStore) Schema(layer string) ([]string, error) {
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

// CreateLayer creates a feature table and registers it in the GeoPackage
// metadata tables.
func (s *GeoPackageStore) CreateLayer(layer string, fields []FieldDef, kind GeomKind) error {
	if s.HasLayer(layer) {
		return &StoreError{Op: "CreateLayer", Layer: layer, Cause: ErrLayerExists}
	}
	cols := []string{`id INTEGER PRIMARY KEY`}
	for _, fd := range fields {
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(fd.Name), fd.Type.String()))
	}
	dataType := "attributes"
	if kind != GeomNone {
		cols = append(cols, `geom BLOB`)
		dataType = "features"
	}
	ddl := fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(layer), strings.Join(cols, ", "))
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("create layer %s: %w", layer, err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, ?, ?, ?)`,
		layer, dataType, layer, s.srsID); err != nil {
		return fmt.Errorf("register layer %s: %w", layer, err)
	}
	if kind != GeomNone {
		geomType := "POINT"
		if kind == GeomLineString {
			geomType = "LINESTRING"
		}
		if _, err := s.db.Exec(
			`INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m)
			 VALUES (?, 'geom', ?, ?, 2, 0)`,
			layer, geomType, s.srsID); err != nil {
			return fmt.Errorf("register geometry column %s: %w", layer, err)
		}
	}
	delete(s.schemas, layer)
	return nil
}

// DropLayer removes a layer table and its registrations.
func (s *GeoPackageStore) DropLayer(layer string) error {
	if !s.HasLayer(layer) {
		return LayerNotFoundError("DropLayer", layer)
	}
	if _, err := s.db.Exec(fmt.Sprintf(`DROP TABLE %s`, quoteIdent(layer))); err != nil {
		return fmt.Errorf("drop layer %s: %w", layer, err)
	}
	s.db.Exec(`DELETE FROM gpkg_contents WHERE table_name = ?`, layer)
	s.db.Exec(`DELETE FROM gpkg_geometry_columns WHERE table_name = ?`, layer)
	delete(s.schemas, layer)
	return nil
}

func (s *GeoPackageStore) hasGeomColumn(layer string) bool {
	var n int
	err := s.db.QueryRow(
		`SELECT count(*) FROM gpkg_geometry_columns WHERE table_name = ?`, layer).Scan(&n)
	return err == nil && n > 0
}

func (s *GeoPackageStore) selectFeatures(layer, where string, args ...any) ([]*Feature, error) {
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
	rows, err := s.db.Query(query, args...)
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
				g, err := decodeGpkgGeometry(blob)
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

func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// Features enumerates all features in ascending ID order.
func (s *GeoPackageStore) Features(layer string) ([]*Feature, error) {
	return s.selectFeatures(layer, "")
}

// FeaturesWhere enumerates features whose named attribute equals value.
func (s *GeoPackageStore) FeaturesWhere(layer, field string, value any) ([]*Feature, error) {
	return s.selectFeatures(layer, quoteIdent(field)+" = ?", value)
}

// Get returns the feature with the given ID.
func (s *GeoPackageStore) Get(layer string, id int64) (*Feature, error) {
	feats, err := s.selectFeatures(layer, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(feats) == 0 {
		return nil, FeatureNotFoundError("Get", layer, id)
	}
	return feats[0], nil
}

func (s *GeoPackageStore) writeArgs(layer string, f *Feature) ([]string, []any, error) {
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
			blob, err = encodeGpkgGeometry(f.Geom, s.srsID)
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
func (s *GeoPackageStore) Create(layer string, f *Feature) error {
	names, args, err := s.writeArgs(layer, f)
	if err != nil {
		return err
	}
	cols := []string{"id"}
	marks := []string{"?"}
	for _, n := range names {
		cols = append(cols, quoteIdent(n))
		marks = append(marks, "?")
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		quoteIdent(layer), strings.Join(cols, ", "), strings.Join(marks, ", "))
	if _, err := s.db.Exec(query, append([]any{f.ID}, args...)...); err != nil {
		return &StoreError{Op: "Create", Layer: layer, ID: f.ID, Cause: err}
	}
	return nil
}

// Update persists mutations of an existing feature.
func (s *GeoPackageStore) Update(layer string, f *Feature) error {
	names, args, err := s.writeArgs(layer, f)
	if err != nil {
		return err
	}
	sets := make([]string, len(names))
	for i, n := range names {
		sets[i] = quoteIdent(n) + " = ?"
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`,
		quoteIdent(layer), strings.Join(sets, ", "))
	res, err := s.db.Exec(query, append(args, f.ID)...)
	if err != nil {
		return &StoreError{Op: "Update", Layer: layer, ID: f.ID, Cause: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return FeatureNotFoundError("Update", layer, f.ID)
	}
	return nil
}

// Delete removes the feature with the given ID.
func (s *GeoPackageStore) Delete(layer string, id int64) error {
	if !s.HasLayer(layer) {
		return LayerNotFoundError("Delete", layer)
	}
	res, err := s.db.Exec(
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, quoteIdent(layer)), id)
	if err != nil {
		return &StoreError{Op: "Delete", Layer: layer, ID: id, Cause: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return FeatureNotFoundError("Delete", layer, id)
	}
	return nil
}

// Close closes the underlying database.
func (s *GeoPackageStore) Close() error {
	return s.db.Close()
}

// encodeGpkgGeometry renders a geometry as a GeoPackage blob: the 8-byte
// standard header (no envelope) followed by little-endian WKB.
func encodeGpkgGeometry(g geometry.Geometry, srsID int32) ([]byte, error) {
	t, err := toGeomT(g)
	if err != nil {
		return nil, err
	}
	payload, err := wkb.Marshal(t, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	header := make([]byte, 8)
	header[0] = gpkgHeaderMagic[0]
	header[1] = gpkgHeaderMagic[1]
	header[2] = 0    // version
	header[3] = 0x01 // little-endian header, no envelope
	binary.LittleEndian.PutUint32(header[4:8], uint32(srsID))
	return append(header, payload...), nil
}

// decodeGpkgGeometry parses a GeoPackage blob into a geometry, skipping
// over whatever envelope the producer wrote.
func decodeGpkgGeometry(blob []byte) (geometry.Geometry, error) {
	if len(blob) < 8 || blob[0] != gpkgHeaderMagic[0] || blob[1] != gpkgHeaderMagic[1] {
		return nil, fmt.Errorf("not a geopackage geometry blob")
	}
	flags := blob[3]
	envelopeCode := (flags >> 1) & 0x07
	var envelopeDoubles int
	switch envelopeCode {
	case 0:
		envelopeDoubles = 0
	case 1:
		envelopeDoubles = 4
	case 2, 3:
		envelopeDoubles = 6
	case 4:
		envelopeDoubles = 8
	default:
		return nil, fmt.Errorf("invalid geopackage envelope code %d", envelopeCode)
	}
	offset := 8 + envelopeDoubles*8
	if len(blob) < offset {
		return nil, fmt.Errorf("geopackage blob truncated")
	}
	t, err := wkb.Unmarshal(blob[offset:])
	if err != nil {
		return nil, err
	}
	return fromGeomT(t)
}

func toGeomT(g geometry.Geometry) (geom.T, error) {
	switch v := g.(type) {
	case geometry.Point:
		if z, ok := v.Z(); ok {
			return geom.NewPointFlat(geom.XYZ, []float64{v.X, v.Y, z}), nil
		}
		return geom.NewPointFlat(geom.XY, []float64{v.X, v.Y}), nil
	case geometry.LineString:
		layout := geom.XY
		stride := 2
		if v.Is3D() {
			layout = geom.XYZ
			stride = 3
		}
		flat := make([]float64, 0, v.NumPoints()*stride)
		for i := 0; i < v.NumPoints(); i++ {
			p := v.Point(i)
			flat = append(flat, p.X, p.Y)
			if stride == 3 {
				z, _ := p.Z()
				flat = append(flat, z)
			}
		}
		return geom.NewLineStringFlat(layout, flat), nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}
}

func fromGeomT(t geom.T) (geometry.Geometry, error) {
	switch v := t.(type) {
	case *geom.Point:
		c := v.Coords()
		if v.Layout().ZIndex() >= 0 {
			return geometry.NewPointZ(c[0], c[1], c[2]), nil
		}
		return geometry.NewPoint(c[0], c[1]), nil
	case *geom.LineString:
		hasZ := v.Layout().ZIndex() >= 0
		pts := make([]geometry.Point, v.NumCoords())
		for i := 0; i < v.NumCoords(); i++ {
			c := v.Coord(i)
			if hasZ {
				pts[i] = geometry.NewPointZ(c[0], c[1], c[2])
			} else {
				pts[i] = geometry.NewPoint(c[0], c[1])
			}
		}
		return geometry.NewLineString(pts), nil
	default:
		return nil, fmt.Errorf("unsupported WKB geometry type %T", t)
	}
}
