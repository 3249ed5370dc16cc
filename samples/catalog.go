// Package samples is the resource layer of the engine: a catalog of preset
// definitions, a renderer that turns a definition into PCM, and a caching
// loader that unifies the two so parameter edits and audio stay in sync.
package samples

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rytmilabs/rytmi"
	"gopkg.in/yaml.v2"
)

//go:embed presets/*.yml
var builtinFS embed.FS

// Catalog holds every known preset definition, keyed by id and grouped by
// category. The definitions inside are treated as immutable; the loader
// keeps its own editable copies.
type Catalog struct {
	presets []rytmi.Preset
	index   map[string]int
	byCat   map[rytmi.Category][]string
}

// NewCatalog loads the built-in presets embedded in the binary.
func NewCatalog() (*Catalog, error) {
	c := &Catalog{
		index: map[string]int{},
		byCat: map[rytmi.Category][]string{},
	}
	if err := c.loadFS(builtinFS); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUserDir merges presets from the user's config directory
// (e.g. ~/.config/rytmi/presets) on top of the built-ins. Missing directory
// is not an error; a broken file is.
func (c *Catalog) LoadUserDir() error {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	dir := filepath.Join(configDir, "rytmi", "presets")
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	return c.loadFS(os.DirFS(dir))
}

func (c *Catalog) loadFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".yml" {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("could not read preset %v: %w", path, err)
		}
		var p rytmi.Preset
		if err := yaml.UnmarshalStrict(data, &p); err != nil {
			return fmt.Errorf("could not unmarshal preset %v: %w", path, err)
		}
		if err := validatePreset(&p); err != nil {
			return fmt.Errorf("preset %v: %w", path, err)
		}
		if i, ok := c.index[p.ID]; ok {
			// user presets may shadow built-ins of the same id
			c.presets[i] = p
			return nil
		}
		c.index[p.ID] = len(c.presets)
		c.presets = append(c.presets, p)
		c.byCat[p.Category] = append(c.byCat[p.Category], p.ID)
		return nil
	})
}

func validatePreset(p *rytmi.Preset) error {
	if p.ID == "" {
		return fmt.Errorf("preset has no id")
	}
	if !rytmi.KnownCategory(p.Category) {
		return fmt.Errorf("unknown category %q", p.Category)
	}
	if p.Sample == "" {
		return fmt.Errorf("preset has no sample locator")
	}
	seen := map[string]bool{}
	for i := range p.Params {
		par := &p.Params[i]
		if par.ID == "" {
			return fmt.Errorf("parameter %d has no id", i)
		}
		if seen[par.ID] {
			return fmt.Errorf("duplicate parameter %q", par.ID)
		}
		seen[par.ID] = true
		if par.Min > par.Max {
			return fmt.Errorf("parameter %q has min %g > max %g", par.ID, par.Min, par.Max)
		}
		if par.Default < par.Min || par.Default > par.Max {
			return fmt.Errorf("parameter %q default %g outside [%g, %g]", par.ID, par.Default, par.Min, par.Max)
		}
		if par.Value < par.Min || par.Value > par.Max {
			return fmt.Errorf("parameter %q value %g outside [%g, %g]", par.ID, par.Value, par.Min, par.Max)
		}
	}
	return nil
}

// Preset returns a copy of the definition with the given id.
func (c *Catalog) Preset(id string) (rytmi.Preset, bool) {
	i, ok := c.index[id]
	if !ok {
		return rytmi.Preset{}, false
	}
	return c.presets[i].Copy(), true
}

// Category returns the preset ids of one category, in catalog order.
func (c *Catalog) Category(cat rytmi.Category) []string {
	ids := c.byCat[cat]
	ret := make([]string, len(ids))
	copy(ret, ids)
	return ret
}

// defaultPresets names the preset each category starts with.
var defaultPresets = map[rytmi.Category]string{
	rytmi.CategoryKick:       "kick-classic",
	rytmi.CategoryBass:       "bass-standard",
	rytmi.CategoryHat:        "hat-closed",
	rytmi.CategorySnare:      "snare-classic",
	rytmi.CategoryClap:       "clap-classic",
	rytmi.CategoryPercussion: "perc-shaker",
	rytmi.CategorySynthLead:  "synth-lead-bright",
	rytmi.CategorySynthPad:   "synth-pad-warm",
	rytmi.CategorySynthAcid:  "synth-acid-303",
	rytmi.CategoryFX:         "fx-sweep",
}

// DefaultFor returns the default preset of a category, or the first one in
// catalog order if the named default is missing.
func (c *Catalog) DefaultFor(cat rytmi.Category) (string, bool) {
	if id, ok := defaultPresets[cat]; ok {
		if _, found := c.index[id]; found {
			return id, true
		}
	}
	ids := c.byCat[cat]
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// IDs returns every preset id in catalog order.
func (c *Catalog) IDs() []string {
	ret := make([]string, 0, len(c.presets))
	for i := range c.presets {
		ret = append(ret, c.presets[i].ID)
	}
	return ret
}

// Len returns the number of presets in the catalog.
func (c *Catalog) Len() int {
	return len(c.presets)
}
