// Package dflowfm reads D-Flow FM schematisation inputs: the MDU master
// file, structure and cross-section INI files, friction definitions and
// the UGRID network NetCDF.
package dflowfm

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// iniLoadOptions tolerates the D-Flow FM dialect: repeated section
// names, mixed key casing across exporters, and semicolons inside
// values (FrictFile lists use them as separators).
var iniLoadOptions = ini.LoadOptions{
	AllowNonUniqueSections: true,
	Insensitive:            true,
	IgnoreInlineComment:    true,
}

func loadINI(path string) (*ini.File, error) {
	f, err := ini.LoadSources(iniLoadOptions, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return f, nil
}

// Section is one INI block with case-insensitive keys.
type Section struct {
	Name string
	keys map[string]string
}

// sectionsNamed collects all blocks with the given name.
func sectionsNamed(f *ini.File, name string) []Section {
	var out []Section
	for _, sec := range f.Sections() {
		if !strings.EqualFold(sec.Name(), name) {
			continue
		}
		s := Section{Name: sec.Name(), keys: make(map[string]string)}
		for _, key := range sec.Keys() {
			s.keys[strings.ToLower(key.Name())] = strings.TrimSpace(key.Value())
		}
		out = append(out, s)
	}
	return out
}

// Str returns the raw value for a key, empty when absent.
func (s Section) Str(key string) string {
	return s.keys[strings.ToLower(key)]
}

// Has reports whether the key is present with a non-empty value.
func (s Section) Has(key string) bool {
	return s.Str(key) != ""
}

// Float parses a key as float64.
func (s Section) Float(key string) (float64, bool) {
	raw := s.Str(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Int parses a key as int.
func (s Section) Int(key string) (int, bool) {
	raw := s.Str(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Bool parses a key as boolean. D-Flow files write 0/1 as well as
// true/false.
func (s Section) Bool(key string) (bool, bool) {
	switch strings.ToLower(s.Str(key)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}

// Floats parses a key as a whitespace-separated list of float64.
func (s Section) Floats(key string) ([]float64, bool) {
	raw := s.Str(key)
	if raw == "" {
		return nil, false
	}
	parts := strings.Fields(raw)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// Keys returns a copy of all key/value pairs, lower-cased keys.
func (s Section) Keys() map[string]string {
	cp := make(map[string]string, len(s.keys))
	for k, v := range s.keys {
		cp[k] = v
	}
	return cp
}
