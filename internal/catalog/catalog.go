// Package catalog holds the named output templates a batch can target.
package catalog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/pelletier/go-toml/v2"
)

var builtin = []model.Template{
	{Name: "Instagram Post", Width: 1080, Height: 1080},
	{Name: "Instagram Story", Width: 1080, Height: 1920},
	{Name: "Facebook Post", Width: 1200, Height: 630},
	{Name: "Twitter Post", Width: 1600, Height: 900},
	{Name: "LinkedIn Post", Width: 1200, Height: 627},
	{Name: "YouTube Thumbnail", Width: 1280, Height: 720},
	{Name: "Pinterest Pin", Width: 1000, Height: 1500},
}

type Catalog struct {
	templates []model.Template
	byName    map[string]int
}

// Default returns the built-in social-media templates.
func Default() *Catalog {
	c, _ := New(builtin)
	return c
}

// New builds a catalog. Names are matched case-insensitively and must be unique.
func New(templates []model.Template) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]int, len(templates))}
	for _, t := range templates {
		if err := c.add(t, false); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (c *Catalog) add(t model.Template, replace bool) error {
	t.Name = strings.TrimSpace(t.Name)
	switch {
	case t.Name == "":
		return fmt.Errorf("template without name")
	case t.IsAggregate() || strings.EqualFold(t.Name, model.CustomSizeName):
		return fmt.Errorf("template name %q is reserved", t.Name)
	}

	k := key(t.Name)
	if i, ok := c.byName[k]; ok {
		if !replace {
			return fmt.Errorf("duplicate template %q", t.Name)
		}
		c.templates[i] = t
		return nil
	}

	c.byName[k] = len(c.templates)
	c.templates = append(c.templates, t)
	return nil
}

// All returns a copy of the templates in catalog order.
func (c *Catalog) All() []model.Template {
	return append([]model.Template(nil), c.templates...)
}

func (c *Catalog) Lookup(name string) (model.Template, bool) {
	i, ok := c.byName[key(name)]
	if !ok {
		return model.Template{}, false
	}
	return c.templates[i], true
}

// Merge overlays other on top of c: templates with a known name replace the existing
// entry in place, new ones are appended. c is left untouched.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	res := &Catalog{byName: make(map[string]int, len(c.templates)+len(other.templates))}
	for _, t := range c.templates {
		_ = res.add(t, true)
	}
	for _, t := range other.templates {
		_ = res.add(t, true)
	}
	return res
}

// Resolve turns template names into templates. "All Templates" expands to the whole
// catalog; repeated names are kept once.
func (c *Catalog) Resolve(names []string) ([]model.Template, error) {
	res := make([]model.Template, 0, len(names))
	seen := make(map[string]bool, len(names))

	push := func(t model.Template) {
		if k := key(t.Name); !seen[k] {
			seen[k] = true
			res = append(res, t)
		}
	}

	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), model.AllTemplatesName) {
			for _, t := range c.templates {
				push(t)
			}
			continue
		}

		t, ok := c.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", model.ErrUnknownTemplate, n)
		}
		push(t)
	}

	return res, nil
}

type catalogFile struct {
	Templates []model.Template `toml:"template"`
}

// LoadTOML reads [[template]] tables with name, width and height.
func LoadTOML(r io.Reader) (*Catalog, error) {
	var f catalogFile
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	for _, t := range f.Templates {
		if t.Width <= 0 || t.Height <= 0 {
			return nil, fmt.Errorf("template %q: width and height must be positive", t.Name)
		}
	}

	return New(f.Templates)
}

// LoadFile merges the catalog at path over the built-ins. An empty path yields the built-ins.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()

	custom, err := LoadTOML(file)
	if err != nil {
		return nil, err
	}

	return Default().Merge(custom), nil
}
