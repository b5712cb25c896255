package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
source:
  mdu: /data/FlowFM.mdu
target:
  backend: gpkg
  path: /data/schematisation.gpkg
convert:
  clear_first: true
  replace_pumps: true
compact:
  threshold: 10.0
  tie_policy: delete_end
  edge_ids: [12, 14]
`))
	require.NoError(t, err)

	assert.Equal(t, "/data/FlowFM.mdu", cfg.Source.MDU)
	assert.Equal(t, BackendGeoPackage, cfg.Target.Backend)
	assert.Equal(t, DefaultEPSG, cfg.Target.EPSG)
	assert.True(t, cfg.Convert.ClearFirst)
	assert.Equal(t, 10.0, cfg.Compact.Threshold)
	assert.Equal(t, TieDeleteEnd, cfg.Compact.TiePolicy)
	assert.Equal(t, []int64{12, 14}, cfg.Compact.EdgeIDs)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
source:
  mdu: /data/FlowFM.mdu
target:
  path: /data/schematisation.gpkg
`))
	require.NoError(t, err)

	assert.Equal(t, BackendGeoPackage, cfg.Target.Backend)
	assert.Equal(t, DefaultEPSG, cfg.Target.EPSG)
	assert.Equal(t, 5.0, cfg.Compact.Threshold)
	assert.Equal(t, TieDeleteStart, cfg.Compact.TiePolicy)
}

func TestLoadRejectsMissingMDU(t *testing.T) {
	_, err := Load(writeConfig(t, `
target:
  path: /data/schematisation.gpkg
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MDU")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := Load(writeConfig(t, `
source:
  mdu: /data/FlowFM.mdu
target:
  backend: oracle
  dsn: x
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of")
}

func TestValidateBackendPathRules(t *testing.T) {
	cfg := Default()
	cfg.Source.MDU = "/data/FlowFM.mdu"
	require.Error(t, cfg.Validate())

	cfg.Target.Path = "/data/schematisation.gpkg"
	require.NoError(t, cfg.Validate())

	cfg.Target.Backend = BackendPostgres
	cfg.Target.Path = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target.dsn")
}

func TestValidateRejectsNonPositiveThreshold(t *testing.T) {
	cfg := Default()
	cfg.Source.MDU = "/data/FlowFM.mdu"
	cfg.Target.Path = "x.gpkg"
	cfg.Compact.Threshold = -1
	require.Error(t, cfg.Validate())
}
