package score

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
)

// Checkpoint is a write-through file copy of the reducer state so a
// host restart mid-round does not zero live scores. The in-memory
// reducer stays authoritative for the live round; the file exists only
// to survive an accidental restart and is invalidated at round
// start/reset.
type Checkpoint struct {
	path string
}

// NewCheckpoint creates a checkpoint backed by the given file path.
func NewCheckpoint(path string) *Checkpoint {
	return &Checkpoint{path: path}
}

// Store writes the snapshot to disk. Failures are logged and dropped;
// checkpointing is best-effort.
func (c *Checkpoint) Store(snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal score checkpoint")
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		log.Error().Err(err).Str("path", c.path).Msg("failed to write score checkpoint")
	}
}

// Load reads the last checkpointed snapshot, if one exists.
func (c *Checkpoint) Load() (Snapshot, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Error().Err(err).Str("path", c.path).Msg("failed to read score checkpoint")
		}
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", c.path).Msg("corrupt score checkpoint, ignoring")
		return Snapshot{}, false
	}
	if snap.Leaderboard == nil {
		snap.Leaderboard = make(map[string]int)
	}
	return snap, true
}

// Invalidate removes the checkpoint file.
func (c *Checkpoint) Invalidate() {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error().Err(err).Str("path", c.path).Msg("failed to remove score checkpoint")
	}
}
