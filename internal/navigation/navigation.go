// Package navigation holds the role-gated dashboard navigation.
package navigation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/huangang/thesisdesk/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed links.yaml
var defaultLinks []byte

const anyRole = "any"

// Audience is either every signed-in role or an explicit set of roles.
type Audience struct {
	Any   bool
	Roles []models.Role
}

// Everyone admits every role.
var Everyone = Audience{Any: true}

// Only admits exactly roles.
func Only(roles ...models.Role) Audience {
	return Audience{Roles: roles}
}

// Admits reports whether role belongs to the audience.
func (a Audience) Admits(role models.Role) bool {
	if a.Any {
		return role.Valid()
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// UnmarshalYAML accepts "any", a single role or a list of roles.
func (a *Audience) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if strings.EqualFold(strings.TrimSpace(node.Value), anyRole) {
			*a = Everyone
			return nil
		}
		role, ok := models.ParseRole(node.Value)
		if !ok {
			return fmt.Errorf("line %d: unknown role %q", node.Line, node.Value)
		}
		*a = Only(role)
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		if len(names) == 0 {
			return fmt.Errorf("line %d: empty role list", node.Line)
		}
		roles := make([]models.Role, 0, len(names))
		for _, name := range names {
			role, ok := models.ParseRole(name)
			if !ok {
				return fmt.Errorf("line %d: unknown role %q", node.Line, name)
			}
			roles = append(roles, role)
		}
		*a = Only(roles...)
		return nil
	}
	return fmt.Errorf("line %d: audience must be %q or a list of roles", node.Line, anyRole)
}

func (a Audience) MarshalJSON() ([]byte, error) {
	if a.Any {
		return json.Marshal(anyRole)
	}
	return json.Marshal(a.Roles)
}

type Link struct {
	Icon          string   `yaml:"icon" json:"icon"`
	Name          string   `yaml:"name" json:"name"`
	Href          string   `yaml:"href" json:"href"`
	Authorization Audience `yaml:"authorization" json:"authorization"`
}

type Section struct {
	Header  string   `yaml:"header" json:"header"`
	Links   []Link   `yaml:"links" json:"links"`
	Allowed Audience `yaml:"allowed" json:"allowed"`
}

// Config is the full navigation tree.
type Config struct {
	Sections []Section `yaml:"sections" json:"sections"`
}

// Default returns the built-in navigation.
func Default() *Config {
	cfg, err := Parse(defaultLinks)
	if err != nil {
		panic("navigation: invalid built-in links: " + err.Error())
	}
	return cfg
}

// Load reads the navigation from path, or the built-in one when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and checks a navigation document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	for i, s := range cfg.Sections {
		if strings.TrimSpace(s.Header) == "" {
			return nil, fmt.Errorf("section %d has no header", i+1)
		}
		if !s.Allowed.Any && len(s.Allowed.Roles) == 0 {
			return nil, fmt.Errorf("section %q has no allowed audience", s.Header)
		}
		for _, l := range s.Links {
			if l.Name == "" || l.Href == "" {
				return nil, fmt.Errorf("section %q has a link without name or href", s.Header)
			}
			if !l.Authorization.Any && len(l.Authorization.Roles) == 0 {
				return nil, fmt.Errorf("link %q has no authorization", l.Name)
			}
		}
	}
	return &cfg, nil
}

// IsVisible reports whether role may see link.
func IsVisible(link Link, role models.Role) bool {
	return link.Authorization.Admits(role)
}

// ForRole returns the sections role may open, keeping only visible links.
// Sections left without links are dropped.
func (c *Config) ForRole(role models.Role) []Section {
	out := []Section{}
	for _, s := range c.Sections {
		if !s.Allowed.Admits(role) {
			continue
		}
		visible := make([]Link, 0, len(s.Links))
		for _, l := range s.Links {
			if IsVisible(l, role) {
				visible = append(visible, l)
			}
		}
		if len(visible) == 0 {
			continue
		}
		s.Links = visible
		out = append(out, s)
	}
	return out
}
