package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/ndlib/siptools/mets"
)

// ApplyDefaults fills every unset value.
func ApplyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.METS.Profile == "" {
		cfg.METS.Profile = mets.ProfileCulturalHeritage
	}
	if cfg.METS.CreatorType == "" {
		cfg.METS.CreatorType = mets.CreatorOrganization
	}
	cfg.METS.CreatorType = strings.ToUpper(cfg.METS.CreatorType)
	if cfg.Scraper.Workers == 0 {
		cfg.Scraper.Workers = runtime.NumCPU()
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":14000"
	}
	if cfg.Server.MaxBuilds == 0 {
		cfg.Server.MaxBuilds = 2
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = time.Minute
	}
}
