package parser

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultJustices is the author roster used when no override is configured.
var DefaultJustices = []string{
	"Roberts", "Thomas", "Alito", "Sotomayor", "Kagan",
	"Gorsuch", "Kavanaugh", "Barrett", "Jackson",
	"Breyer", "Ginsburg", "Kennedy", "Scalia", "Souter", "Stevens",
}

// Registry is the immutable set of known author surnames.
type Registry struct {
	names []string // Display form, e.g. "Thomas"
	upper []string // Small-caps form, e.g. "THOMAS"
}

// NewRegistry builds a registry from surnames. Blank and duplicate names are dropped.
func NewRegistry(names ...string) Registry {
	seen := make(map[string]bool)
	var r Registry
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		up := strings.ToUpper(n)
		if seen[up] {
			continue
		}
		seen[up] = true
		r.names = append(r.names, displayName(n))
		r.upper = append(r.upper, up)
	}
	return r
}

// DefaultRegistry returns a registry over DefaultJustices.
func DefaultRegistry() Registry {
	return NewRegistry(DefaultJustices...)
}

// rosterFile is the YAML form of a registry:
//
//	justices:
//	  - Roberts
//	  - Thomas
type rosterFile struct {
	Justices []string `yaml:"justices"`
}

// ParseRegistry decodes a YAML roster. A roster with no usable names is an error.
func ParseRegistry(data []byte) (Registry, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Registry{}, fmt.Errorf("parsing YAML: %w", err)
	}
	r := NewRegistry(f.Justices...)
	if r.Len() == 0 {
		return Registry{}, fmt.Errorf("roster lists no justices")
	}
	return r, nil
}

// LoadRegistryFile reads a YAML roster from disk.
func LoadRegistryFile(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, fmt.Errorf("reading file: %w", err)
	}
	return ParseRegistry(data)
}

// RegistryFrom picks the roster source in order: file, explicit names, defaults.
func RegistryFrom(path string, names []string) (Registry, error) {
	if path != "" {
		return LoadRegistryFile(path)
	}
	if r := NewRegistry(names...); r.Len() > 0 {
		return r, nil
	}
	return DefaultRegistry(), nil
}

// Resolve maps a candidate token (any case) to its display name.
func (r Registry) Resolve(token string) (string, bool) {
	up := strings.ToUpper(strings.TrimSpace(token))
	for i, u := range r.upper {
		if u == up {
			return r.names[i], true
		}
	}
	return "", false
}

// Upper returns the registry names in small-caps (uppercase) form.
func (r Registry) Upper() []string {
	out := make([]string, len(r.upper))
	copy(out, r.upper)
	return out
}

// Len returns the number of names.
func (r Registry) Len() int { return len(r.names) }

func displayName(n string) string {
	lower := strings.ToLower(n)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
