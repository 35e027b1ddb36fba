package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
)

// ErrNotFound is returned by Registry.Get for an unknown schema name.
var ErrNotFound = errors.New("schema: not found")

// Registry holds schemas loaded eagerly from an fs.FS (os.DirFS, embed.FS) and compiled once.
// Read-only after NewRegistry, so it needs no locking.
type Registry struct {
	compiled map[string]*Compiled
}

// NewRegistry walks root in fsys, parses every .yaml/.yml file and compiles it with toolName.
// A schema is keyed by its name field, or by the file base name when the field is empty.
// Two files declaring the same name is an error.
func NewRegistry(fsys fs.FS, root, toolName string) (*Registry, error) {
	r := &Registry{compiled: make(map[string]*Compiled)}
	origin := make(map[string]string)
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || (!strings.HasSuffix(p, ".yaml") && !strings.HasSuffix(p, ".yml")) {
			return nil
		}
		s, err := ParseFS(fsys, p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		name := s.Name
		if name == "" {
			base := path.Base(p)
			name = strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
		}
		if prev, ok := origin[name]; ok {
			return fmt.Errorf("schema: %q declared in both %s and %s", name, prev, p)
		}
		c, err := Compile(s, toolName)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		origin[name] = p
		r.compiled[name] = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the compiled schema registered under name.
func (r *Registry) Get(name string) (*Compiled, error) {
	if c, ok := r.compiled[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Names returns the registered schema names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.compiled))
	for n := range r.compiled {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
