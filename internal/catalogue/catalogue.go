// Package catalogue holds the static attributes of every shell module.
package catalogue

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
)

//go:embed default.json
var defaultJSON []byte

// Kind is where a module may be placed on a shell.
type Kind string

const (
	KindHead Kind = "head"
	KindBody Kind = "body"
	KindBase Kind = "base"
)

// Module is one catalogue entry. Modifiers multiply the shell's base figures.
type Module struct {
	Name             string
	Kind             Kind
	MaxLengthMM      float64
	VelocityMod      float64
	KineticMod       float64
	APMod            float64
	AccuracyMod      float64
	Payload          map[models.DamageType]float64
	BeltIncompatible bool
}

// LengthMM is the module's length at the given gauge.
func (m Module) LengthMM(gauge float64) float64 {
	return min(gauge, m.MaxLengthMM)
}

// Catalogue is an immutable, indexed module list.
type Catalogue struct {
	modules []Module
	index   map[string]int
}

// ErrEmpty is returned when a catalogue document lists no modules.
var ErrEmpty = errors.New("catalogue has no modules")

// Parse reads a catalogue JSON document.
func Parse(data []byte) (*Catalogue, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("failed to parse catalogue: invalid JSON")
	}

	c := &Catalogue{index: make(map[string]int)}
	var parseErr error
	gjson.GetBytes(data, "modules").ForEach(func(_, v gjson.Result) bool {
		m, err := parseModule(v)
		if err != nil {
			parseErr = fmt.Errorf("module %d: %w", len(c.modules), err)
			return false
		}
		if _, dup := c.index[m.Name]; dup {
			parseErr = fmt.Errorf("duplicate module name %q", m.Name)
			return false
		}
		c.index[m.Name] = len(c.modules)
		c.modules = append(c.modules, m)
		return true
	})
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse catalogue: %w", parseErr)
	}
	if len(c.modules) == 0 {
		return nil, ErrEmpty
	}
	return c, nil
}

func parseModule(v gjson.Result) (Module, error) {
	m := Module{
		Name:             strings.TrimSpace(v.Get("name").String()),
		Kind:             Kind(v.Get("kind").String()),
		MaxLengthMM:      v.Get("max_length_mm").Float(),
		VelocityMod:      floatOr(v, "velocity_mod", 1),
		KineticMod:       floatOr(v, "kinetic_mod", 1),
		APMod:            floatOr(v, "ap_mod", 1),
		AccuracyMod:      floatOr(v, "accuracy_mod", 1),
		BeltIncompatible: v.Get("belt_incompatible").Bool(),
		Payload:          make(map[models.DamageType]float64),
	}
	if m.Name == "" {
		return m, fmt.Errorf("name is required")
	}
	switch m.Kind {
	case KindHead, KindBody, KindBase:
	default:
		return m, fmt.Errorf("%s: unknown kind %q", m.Name, m.Kind)
	}
	if m.MaxLengthMM <= 0 {
		return m, fmt.Errorf("%s: max_length_mm must be positive", m.Name)
	}

	var payloadErr error
	v.Get("payload").ForEach(func(k, amount gjson.Result) bool {
		dt, err := models.ParseDamageType(k.String())
		if err != nil {
			payloadErr = fmt.Errorf("%s: %w", m.Name, err)
			return false
		}
		m.Payload[dt] = amount.Float()
		return true
	})
	return m, payloadErr
}

func floatOr(v gjson.Result, path string, fallback float64) float64 {
	r := v.Get(path)
	if !r.Exists() {
		return fallback
	}
	return r.Float()
}

// Load reads a catalogue from a JSON file.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue file: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in catalogue.
func Default() *Catalogue {
	c, err := Parse(defaultJSON)
	if err != nil {
		panic(fmt.Sprintf("built-in catalogue: %v", err))
	}
	return c
}

// Len is the number of modules.
func (c *Catalogue) Len() int { return len(c.modules) }

// Module returns the module at index i.
func (c *Catalogue) Module(i int) Module { return c.modules[i] }

// Index looks a module up by name.
func (c *Catalogue) Index(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// Resolve maps module names to indices, checking each against the allowed kinds.
func (c *Catalogue) Resolve(names []string, allowed ...Kind) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, name := range names {
		i, ok := c.index[name]
		if !ok {
			return nil, fmt.Errorf("unknown module %q", name)
		}
		if len(allowed) > 0 && !slices.Contains(allowed, c.modules[i].Kind) {
			return nil, fmt.Errorf("module %q is a %s module", name, c.modules[i].Kind)
		}
		out = append(out, i)
	}
	return out, nil
}

// BeltIncompatible returns the first module that belt-fed loaders cannot carry.
func (c *Catalogue) BeltIncompatible() (int, bool) {
	for i, m := range c.modules {
		if m.BeltIncompatible {
			return i, true
		}
	}
	return -1, false
}
