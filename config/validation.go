package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ndlib/siptools/mets"
)

var validate = validator.New()

// Validate checks the struct tags of cfg and the rules that cannot be
// written as tags. The first problem found is returned.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	if _, err := mets.ParseProfile(cfg.METS.Profile); err != nil {
		return fmt.Errorf("mets.profile: %s", err)
	}
	if len(cfg.Scraper.Args) > 0 && cfg.Scraper.Command == "" {
		return fmt.Errorf("scraper.args: given without scraper.command")
	}
	return nil
}

func formatValidationError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		e := errs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
