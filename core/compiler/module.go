// Package compiler turns parsed knowledge modules into latent tensor
// representations and keeps the compiled store in sync with its sources,
// recompiling only modules whose content changed.
package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/adalundhe/lattice/core/tensor"
)

// ModuleType classifies a knowledge module.
type ModuleType string

const (
	ModuleTypeAgent   ModuleType = "agent"
	ModuleTypeSkill   ModuleType = "skill"
	ModuleTypeRule    ModuleType = "rule"
	ModuleTypeCommand ModuleType = "command"
	ModuleTypeContext ModuleType = "context"
	ModuleTypeHook    ModuleType = "hook"
)

// ParseModuleType validates a module type string.
func ParseModuleType(s string) (ModuleType, error) {
	switch t := ModuleType(s); t {
	case ModuleTypeAgent, ModuleTypeSkill, ModuleTypeRule,
		ModuleTypeCommand, ModuleTypeContext, ModuleTypeHook:
		return t, nil
	default:
		return "", fmt.Errorf("unknown module type %q", s)
	}
}

// ParsedModule is a source-level module ready for encoding.
type ParsedModule struct {
	ModuleID    string
	ModuleType  ModuleType
	Name        string
	Description string
	Content     string
	Metadata    map[string]string
}

// ContentHash returns the SHA-256 hex digest of the module content. Pure in
// the content: identical content always hashes identically, independent of
// metadata or source location.
func (m ParsedModule) ContentHash() string {
	return HashContent(m.Content)
}

// HashContent hashes raw module content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// EncodedModule is the compiled artifact for one module: the dense vector
// used by the index scan plus the tensors persisted for reconstruction.
type EncodedModule struct {
	ModuleID    string
	ModuleType  ModuleType
	Name        string
	Description string

	// MeanEmbedding is the mean over the latent trajectory.
	MeanEmbedding []float32

	// LayerStates is [layers x hidden], the per-layer states at the last
	// prompt position.
	LayerStates *tensor.Matrix

	// LatentTrajectory is [steps x hidden], one row per reasoning step.
	LatentTrajectory *tensor.Matrix

	ContentHash string
	TokenCount  int
	Metadata    map[string]string
}
