package compiler

import (
	"context"
	"os"
	"sort"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/lattice/core/errors"
)

// Source supplies the parsed modules for a compilation run.
type Source interface {
	Modules(ctx context.Context) ([]ParsedModule, error)
}

// manifestFile is the on-disk manifest shape.
type manifestFile struct {
	Include []string         `yaml:"include"`
	Exclude []string         `yaml:"exclude"`
	Modules []manifestModule `yaml:"modules"`
}

type manifestModule struct {
	ID          string            `yaml:"id"`
	Type        string            `yaml:"type"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Content     string            `yaml:"content"`
	Metadata    map[string]string `yaml:"metadata"`
}

// ManifestSource reads modules from a YAML manifest. Include and exclude
// glob patterns match against module ids; an empty include list admits
// everything not excluded.
type ManifestSource struct {
	path     string
	includes []glob.Glob
	excludes []glob.Glob
	modules  []ParsedModule
}

// NewManifestSource loads and validates a manifest file. Modules are sorted
// by id so compilation order is deterministic.
func NewManifestSource(path string) (*ManifestSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfiguration, err, "read manifest %s", path)
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, errors.Wrap(errors.KindConfiguration, err, "parse manifest %s", path)
	}

	src := &ManifestSource{path: path}
	if src.includes, err = compilePatterns(mf.Include); err != nil {
		return nil, err
	}
	if src.excludes, err = compilePatterns(mf.Exclude); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(mf.Modules))
	for _, raw := range mf.Modules {
		if raw.ID == "" {
			return nil, errors.Configuration("manifest %s: module with empty id", path)
		}
		if _, dup := seen[raw.ID]; dup {
			return nil, errors.Configuration("manifest %s: duplicate module id %q", path, raw.ID)
		}
		seen[raw.ID] = struct{}{}

		moduleType, err := ParseModuleType(raw.Type)
		if err != nil {
			return nil, errors.Configuration("manifest %s: module %q: %v", path, raw.ID, err)
		}
		if raw.Content == "" {
			return nil, errors.Configuration("manifest %s: module %q has empty content", path, raw.ID)
		}
		if !src.admits(raw.ID) {
			continue
		}

		name := raw.Name
		if name == "" {
			name = raw.ID
		}
		src.modules = append(src.modules, ParsedModule{
			ModuleID:    raw.ID,
			ModuleType:  moduleType,
			Name:        name,
			Description: raw.Description,
			Content:     raw.Content,
			Metadata:    raw.Metadata,
		})
	}

	sort.Slice(src.modules, func(i, j int) bool {
		return src.modules[i].ModuleID < src.modules[j].ModuleID
	})
	return src, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrap(errors.KindConfiguration, err, "compile pattern %q", p)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

func (s *ManifestSource) admits(id string) bool {
	for _, g := range s.excludes {
		if g.Match(id) {
			return false
		}
	}
	if len(s.includes) == 0 {
		return true
	}
	for _, g := range s.includes {
		if g.Match(id) {
			return true
		}
	}
	return false
}

// Modules returns the filtered, sorted module set.
func (s *ManifestSource) Modules(_ context.Context) ([]ParsedModule, error) {
	return s.modules, nil
}

// Path returns the manifest file path.
func (s *ManifestSource) Path() string { return s.path }
