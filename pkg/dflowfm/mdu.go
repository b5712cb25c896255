package dflowfm

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MDU holds the geometry file references of a D-Flow FM master
// definition file. Paths are kept relative; Resolve joins them against
// the MDU's directory.
type MDU struct {
	Path          string
	NetFile       string
	StructureFile string
	CrossDefFile  string
	CrossLocFile  string
	FrictFiles    []string
}

// ReadMDU parses the [geometry] block of an MDU file. The FrictFile
// entry is a semicolon-separated list.
func ReadMDU(path string) (*MDU, error) {
	f, err := loadINI(path)
	if err != nil {
		return nil, err
	}
	sections := sectionsNamed(f, "geometry")
	if len(sections) == 0 {
		return nil, fmt.Errorf("%s: no [geometry] section", path)
	}
	geom := sections[0]

	mdu := &MDU{
		Path:          path,
		NetFile:       geom.Str("NetFile"),
		StructureFile: geom.Str("StructureFile"),
		CrossDefFile:  geom.Str("CrossDefFile"),
		CrossLocFile:  geom.Str("CrossLocFile"),
	}
	for _, part := range strings.Split(geom.Str("FrictFile"), ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			mdu.FrictFiles = append(mdu.FrictFiles, part)
		}
	}
	return mdu, nil
}

// Resolve joins a file reference against the MDU's directory.
func (m *MDU) Resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(filepath.Dir(m.Path), name)
}
