package compiler

import (
	"log/slog"

	"github.com/adalundhe/lattice/core/storage"
)

// Delta tracks content hashes across compilation runs so unchanged modules
// skip the expensive encoding pass. Prior hashes come from the store at run
// start; fresh hashes accumulate as modules are checked and persist only
// after the whole run succeeds, so a failed run never advances the baseline.
type Delta struct {
	store  *storage.Store
	logger *slog.Logger

	prior map[string]string
	fresh map[string]string
}

// NewDelta loads the prior hash baseline from the store.
func NewDelta(store *storage.Store, logger *slog.Logger) (*Delta, error) {
	if logger == nil {
		logger = slog.Default()
	}
	prior, err := store.LoadContentHashes()
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded prior content hashes", slog.Int("count", len(prior)))
	return &Delta{
		store:  store,
		logger: logger,
		prior:  prior,
		fresh:  make(map[string]string),
	}, nil
}

// NeedsRecompile records the module's current hash and reports whether it
// differs from the prior run. New modules always need compiling.
func (d *Delta) NeedsRecompile(m ParsedModule) bool {
	current := m.ContentHash()
	d.fresh[m.ModuleID] = current
	return d.prior[m.ModuleID] != current
}

// DeletedModules returns ids present in the prior run but absent from the
// current module set. A rename shows up as one deletion plus one addition.
func (d *Delta) DeletedModules(current []ParsedModule) []string {
	currentIDs := make(map[string]struct{}, len(current))
	for _, m := range current {
		currentIDs[m.ModuleID] = struct{}{}
	}

	var deleted []string
	for id := range d.prior {
		if _, ok := currentIDs[id]; !ok {
			deleted = append(deleted, id)
		}
	}
	return deleted
}

// Commit persists the fresh hash map as the new baseline. Call only after
// every artifact of the run has been written.
func (d *Delta) Commit() error {
	if err := d.store.SaveContentHashes(d.fresh); err != nil {
		return err
	}
	d.logger.Info("committed content hashes", slog.Int("count", len(d.fresh)))
	return nil
}
