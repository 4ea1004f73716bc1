package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
)

// validate is shared; validator.Validate caches struct metadata and is safe for
// concurrent use.
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("damagetype", func(fl validator.FieldLevel) bool {
		_, err := models.ParseDamageType(fl.Field().String())
		return err == nil
	})
}

// LoadSearchConfig loads and parses a search config file
func LoadSearchConfig(path string) (*SearchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read search config file %s: %w", path, err)
	}
	cfg, err := ParseSearchYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadServerConfig loads and parses a server config file
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read server config file %s: %w", path, err)
	}
	cfg, err := ParseServerYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server config file %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateSearch checks struct tags, then the cross-field rules.
func ValidateSearch(cfg *SearchConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cfg.Heads))
	for _, h := range cfg.Heads {
		if seen[h] {
			return fmt.Errorf("duplicate head: %s", h)
		}
		seen[h] = true
	}

	fixed := 0
	for name, n := range cfg.FixedModules {
		if name == "" {
			return fmt.Errorf("fixed module name cannot be empty")
		}
		fixed += n
	}
	if cfg.BudgetCeiling > 0 && fixed > cfg.BudgetCeiling {
		return fmt.Errorf("fixed modules (%d) exceed budget_ceiling (%d)", fixed, cfg.BudgetCeiling)
	}

	l := cfg.Limits
	if l.MaxLengthMM > 0 && l.MinLengthMM >= l.MaxLengthMM {
		return fmt.Errorf("min_length_mm (%g) must be below max_length_mm (%g)", l.MinLengthMM, l.MaxLengthMM)
	}
	if l.BarrelLength.Enabled {
		if l.BarrelLength.Max <= 0 {
			return fmt.Errorf("barrel_length.max must be positive when enabled")
		}
		if l.MaxInaccuracy <= 0 {
			return fmt.Errorf("max_inaccuracy must be positive when barrel length is limited")
		}
	}
	if cfg.Feed.DIF && cfg.BarrelCount > 1 {
		return fmt.Errorf("direct input feed supports a single barrel, got %d", cfg.BarrelCount)
	}
	return nil
}

// ValidateServer checks a ServerConfig.
func ValidateServer(cfg *ServerConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.WatchCatalogue && cfg.CataloguePath == "" {
		return fmt.Errorf("watch_catalogue requires catalogue_path")
	}
	return nil
}
