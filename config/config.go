// Package config reads the siptool configuration file.
//
// The file is TOML. Every value has a default, so an empty file (or no
// file at all) gives a usable configuration for building packages from the
// command line. Command line flags override values from the file.
//
//	[log]
//	level = "info"
//	format = "console"
//
//	[mets]
//	profile = "cultural-heritage"
//	contract_id = "urn:uuid:..."
//	creator_name = "Example Organization"
//
//	[signing]
//	key_file = "/etc/siptools/signing-key.pem"
//	trusted_certs = "/etc/siptools/trusted.pem"
//
//	[server]
//	address = ":14000"
//	source_root = "/srv/transfers"
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the full configuration.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Sentry  SentryConfig  `toml:"sentry"`
	METS    METSConfig    `toml:"mets"`
	Output  OutputConfig  `toml:"output"`
	Signing SigningConfig `toml:"signing"`
	Scraper ScraperConfig `toml:"scraper"`
	Server  ServerConfig  `toml:"server"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error none"`
	Format string `toml:"format" validate:"oneof=json console"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN string `toml:"dsn" validate:"omitempty,url"`
}

// METSConfig holds the values written into every manifest header.
type METSConfig struct {
	Profile     string `toml:"profile" validate:"required"`
	ContractID  string `toml:"contract_id"`
	CreatorName string `toml:"creator_name"`
	CreatorType string `toml:"creator_type" validate:"oneof=ORGANIZATION INDIVIDUAL OTHER"`
}

// OutputConfig gives where finished packages are stored. The location is
// understood by store.ParseLocation.
type OutputConfig struct {
	Location string `toml:"location"`
}

// SigningConfig names the PEM file with the signing key. TrustedCerts
// names a PEM file of certificates that signature certificates must chain
// to when packages are verified without the key.
type SigningConfig struct {
	KeyFile      string `toml:"key_file"`
	TrustedCerts string `toml:"trusted_certs"`
}

// ScraperConfig selects how files are characterized. With an empty
// Command the built in scraper is used.
type ScraperConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Workers int      `toml:"workers" validate:"gte=0"`
	Cache   bool     `toml:"cache"`
}

// ServerConfig configures the HTTP service. Without a TokenFile every
// request is allowed.
type ServerConfig struct {
	Address         string        `toml:"address" validate:"required,hostname_port"`
	SourceRoot      string        `toml:"source_root"`
	TokenFile       string        `toml:"token_file"`
	MaxBuilds       int           `toml:"max_builds" validate:"gte=1"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" validate:"gte=0"`
}

// Load reads the configuration file at path, applies defaults and
// validates the result. An empty path gives the defaults. Unknown keys in
// the file are an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if os.IsNotExist(err) {
			return nil, errors.Errorf("configuration file %s does not exist", path)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("unknown configuration key '%s' in %s", undecoded[0], path)
		}
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
