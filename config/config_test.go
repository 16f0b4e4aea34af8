package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndlib/siptools/mets"
)

func writeConfig(t *testing.T, content string) string {
	p := filepath.Join(t.TempDir(), "siptools.toml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, mets.ProfileCulturalHeritage, cfg.METS.Profile)
	assert.Equal(t, mets.CreatorOrganization, cfg.METS.CreatorType)
	assert.Equal(t, ":14000", cfg.Server.Address)
	assert.Equal(t, 2, cfg.Server.MaxBuilds)
	assert.Equal(t, time.Minute, cfg.Server.ShutdownTimeout)
	assert.Greater(t, cfg.Scraper.Workers, 0)
}

func TestLoadFile(t *testing.T) {
	p := writeConfig(t, `
[log]
level = "DEBUG"
format = "json"

[mets]
profile = "research-data"
contract_id = "urn:uuid:1234"
creator_name = "Library"
creator_type = "individual"

[scraper]
command = "scraper"
args = ["--quiet"]
workers = 3

[server]
address = "localhost:9000"
source_root = "/srv"
shutdown_timeout = "5s"
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "research-data", cfg.METS.Profile)
	assert.Equal(t, "urn:uuid:1234", cfg.METS.ContractID)
	assert.Equal(t, mets.CreatorIndividual, cfg.METS.CreatorType)
	assert.Equal(t, []string{"--quiet"}, cfg.Scraper.Args)
	assert.Equal(t, 3, cfg.Scraper.Workers)
	assert.Equal(t, "localhost:9000", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadErrors(t *testing.T) {
	var table = []struct {
		name    string
		content string
		msg     string
	}{
		{"bad level", "[log]\nlevel = \"loud\"", "Config.Log.Level: validation failed on 'oneof' tag (value: loud)"},
		{"bad profile", "[mets]\nprofile = \"museum\"", "mets.profile: Unknown METS profile 'museum'"},
		{"bad creator", "[mets]\ncreator_type = \"robot\"", "Config.METS.CreatorType: validation failed on 'oneof' tag (value: ROBOT)"},
		{"bad address", "[server]\naddress = \"nowhere\"", "Config.Server.Address: validation failed on 'hostname_port' tag (value: nowhere)"},
		{"bad dsn", "[sentry]\ndsn = \"not a url\"", "Config.Sentry.DSN: validation failed on 'url' tag (value: not a url)"},
		{"args only", "[scraper]\nargs = [\"-x\"]", "scraper.args: given without scraper.command"},
		{"unknown key", "[server]\nport = 80", "unknown configuration key 'server.port' in "},
	}
	for _, tab := range table {
		t.Run(tab.name, func(t *testing.T) {
			p := writeConfig(t, tab.content)
			_, err := Load(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tab.msg)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "this is not toml"))
	assert.Error(t, err)
}
