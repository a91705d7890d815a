// Package state persists the engine's cross-invocation memory. The state
// is a single small record, written once per cycle with atomic rename
// semantics so a crash never leaves a torn file behind.
package state

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	internalio "github.com/sawpanic/regimerun/internal/io"
	"github.com/sawpanic/regimerun/internal/regime"
)

// Store loads and saves engine state. Load reports reset=true when no
// usable stored state existed and a fresh TRANSITION state was returned;
// callers must surface that loudly rather than silently restarting the
// switch machine.
type Store interface {
	Load() (st *regime.State, reset bool, err error)
	Save(st *regime.State) error
}

// FileStore keeps the state as a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted state. A missing or unreadable file yields a
// fresh default state with reset=true and a loud warning; only I/O errors
// other than not-exist are returned.
func (s *FileStore) Load() (*regime.State, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", s.path).
				Msg("no persisted state found, starting from TRANSITION initial condition")
			return regime.NewState(), true, nil
		}
		return nil, false, fmt.Errorf("read state file %s: %w", s.path, err)
	}

	var st regime.State
	if err := json.Unmarshal(data, &st); err != nil {
		log.Warn().Err(err).Str("path", s.path).
			Msg("persisted state unreadable, resetting to TRANSITION initial condition")
		return regime.NewState(), true, nil
	}

	if st.SchemaVersion > regime.SchemaVersion {
		return nil, false, fmt.Errorf("state schema version %d newer than supported %d",
			st.SchemaVersion, regime.SchemaVersion)
	}
	if st.CurrentRegime == "" {
		st.CurrentRegime = regime.Transition
	}
	if _, err := regime.ParseRegime(string(st.CurrentRegime)); err != nil {
		log.Warn().Err(err).Msg("persisted regime label invalid, resetting state")
		return regime.NewState(), true, nil
	}
	if st.BucketHistory == nil {
		st.BucketHistory = regime.NewState().BucketHistory
	}

	return &st, false, nil
}

// Save writes the state atomically.
func (s *FileStore) Save(st *regime.State) error {
	if err := internalio.WriteJSONAtomic(s.path, st); err != nil {
		return fmt.Errorf("write state file %s: %w", s.path, err)
	}
	return nil
}
