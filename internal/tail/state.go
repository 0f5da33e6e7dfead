package tail

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const stateFileName = "offset.json"

// State records how far into the input file the follower has read.
// It is saved after each drain so a restarted CLI resumes where it stopped.
type State struct {
	// Path is the input file the offset belongs to.
	Path string `json:"path"`

	// Offset is the byte position of the first unread line.
	Offset int64 `json:"offset"`

	// UpdatedAt is when the state was last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsEmpty returns true if the state has not been initialized.
func (s State) IsEmpty() bool {
	return s.Path == ""
}

// StateFile persists State as JSON in a directory.
type StateFile struct {
	dir string
}

// NewStateFile creates a StateFile for the given directory.
func NewStateFile(dir string) *StateFile {
	return &StateFile{dir: dir}
}

// Load retrieves the last saved state.
// Returns an empty state and nil error if no state file exists.
func (r *StateFile) Load() (State, error) {
	path := filepath.Join(r.dir, stateFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	return state, nil
}

// Save persists the state atomically (write to temp file, then rename).
func (r *StateFile) Save(state State) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	path := filepath.Join(r.dir, stateFileName)
	tmp := path + ".tmp"

	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
