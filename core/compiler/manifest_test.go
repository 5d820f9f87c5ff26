package compiler_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/lattice/core/compiler"
	"github.com/adalundhe/lattice/core/errors"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestManifestSource_LoadsSortedModules verifies modules come back sorted by
// id regardless of manifest order.
func TestManifestSource_LoadsSortedModules(t *testing.T) {
	path := writeManifest(t, `
modules:
  - id: skills/security-review
    type: skill
    name: security-review
    description: Reviews code for vulnerabilities
    content: Check for injection and credential leaks.
  - id: agents/reviewer
    type: agent
    content: You review pull requests.
    metadata:
      team: platform
`)
	src, err := compiler.NewManifestSource(path)
	require.NoError(t, err)

	modules, err := src.Modules(context.Background())
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, "agents/reviewer", modules[0].ModuleID)
	assert.Equal(t, "skills/security-review", modules[1].ModuleID)
	assert.Equal(t, compiler.ModuleTypeSkill, modules[1].ModuleType)
	assert.Equal(t, "platform", modules[0].Metadata["team"])
	// name falls back to id when omitted
	assert.Equal(t, "agents/reviewer", modules[0].Name)
}

// TestManifestSource_IncludeExcludeGlobs verifies id filtering.
func TestManifestSource_IncludeExcludeGlobs(t *testing.T) {
	path := writeManifest(t, `
include:
  - "rules/**"
exclude:
  - "rules/deprecated--*"
modules:
  - id: rules/common--style
    type: rule
    content: Keep functions short.
  - id: rules/deprecated--old-style
    type: rule
    content: Old guidance.
  - id: skills/security-review
    type: skill
    content: Review code.
`)
	src, err := compiler.NewManifestSource(path)
	require.NoError(t, err)

	modules, err := src.Modules(context.Background())
	require.NoError(t, err)
	require.Len(t, modules, 1)
	assert.Equal(t, "rules/common--style", modules[0].ModuleID)
}

// TestManifestSource_RejectsDuplicateIDs verifies duplicates fail load with
// a configuration error.
func TestManifestSource_RejectsDuplicateIDs(t *testing.T) {
	path := writeManifest(t, `
modules:
  - id: rules/a
    type: rule
    content: one
  - id: rules/a
    type: rule
    content: two
`)
	_, err := compiler.NewManifestSource(path)
	require.Error(t, err)
	assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
}

// TestManifestSource_RejectsUnknownType verifies type validation.
func TestManifestSource_RejectsUnknownType(t *testing.T) {
	path := writeManifest(t, `
modules:
  - id: widgets/a
    type: widget
    content: something
`)
	_, err := compiler.NewManifestSource(path)
	require.Error(t, err)
	assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
}

// TestManifestSource_RejectsEmptyContent verifies empty module bodies fail.
func TestManifestSource_RejectsEmptyContent(t *testing.T) {
	path := writeManifest(t, `
modules:
  - id: rules/a
    type: rule
`)
	_, err := compiler.NewManifestSource(path)
	require.Error(t, err)
	assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
}

// TestManifestSource_MissingFile verifies a missing manifest is a
// configuration error.
func TestManifestSource_MissingFile(t *testing.T) {
	_, err := compiler.NewManifestSource(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
}
