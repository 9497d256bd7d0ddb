package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/penghs520/pgraph/pkg/log"
)

// Checkpointer produces a consistent copy of the store under a
// directory. The graph engine satisfies it.
type Checkpointer interface {
	Checkpoint(dir string) error
}

const (
	dirPrefix   = "snapshot_"
	defaultKeep = 5
)

// Manager owns the snapshot root: it creates timestamped checkpoint
// directories and retains the most recent N.
type Manager struct {
	root string
	keep int
	log  zerolog.Logger
}

// NewManager builds a manager over root keeping the newest keep
// snapshots; keep <= 0 applies the default of 5.
func NewManager(root string, keep int) *Manager {
	if keep <= 0 {
		keep = defaultKeep
	}
	return &Manager{root: root, keep: keep, log: log.WithComponent("snapshot")}
}

// Info describes one snapshot directory.
type Info struct {
	Dir       string
	CreatedAt int64
}

// Create checkpoints the store into a new snapshot_<unix_secs>
// directory. The checkpoint is staged under a temporary name and renamed
// into place only when complete, so a crash never leaves a half-written
// snapshot under a live name. Older snapshots beyond the retention count
// are pruned.
func (m *Manager) Create(kv Checkpointer) (string, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot root: %w", err)
	}

	staging := filepath.Join(m.root, ".staging-"+uuid.NewString())
	if err := kv.Checkpoint(staging); err != nil {
		os.RemoveAll(staging)
		return "", fmt.Errorf("checkpoint: %w", err)
	}

	final := filepath.Join(m.root, fmt.Sprintf("%s%d", dirPrefix, time.Now().Unix()))
	if _, err := os.Stat(final); err == nil {
		if err := os.RemoveAll(final); err != nil {
			os.RemoveAll(staging)
			return "", fmt.Errorf("replace snapshot %s: %w", final, err)
		}
	}
	if err := os.Rename(staging, final); err != nil {
		os.RemoveAll(staging)
		return "", fmt.Errorf("publish snapshot: %w", err)
	}

	m.log.Info().Str("dir", final).Msg("snapshot created")

	if err := m.Prune(); err != nil {
		m.log.Warn().Err(err).Msg("snapshot retention failed")
	}
	return final, nil
}

// List returns the snapshots newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Info
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), dirPrefix) {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimPrefix(e.Name(), dirPrefix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Info{Dir: filepath.Join(m.root, e.Name()), CreatedAt: ts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// Latest returns the newest snapshot, if any.
func (m *Manager) Latest() (Info, bool, error) {
	infos, err := m.List()
	if err != nil || len(infos) == 0 {
		return Info{}, false, err
	}
	return infos[0], true, nil
}

// Prune removes snapshots beyond the retention count. Each victim is
// renamed out of the snapshot namespace first and then deleted, so a
// partially removed directory can never be mistaken for a snapshot.
func (m *Manager) Prune() error {
	infos, err := m.List()
	if err != nil {
		return err
	}
	if len(infos) <= m.keep {
		return nil
	}

	for _, victim := range infos[m.keep:] {
		trash := victim.Dir + ".removing"
		if err := os.Rename(victim.Dir, trash); err != nil {
			return fmt.Errorf("retire snapshot %s: %w", victim.Dir, err)
		}
		if err := os.RemoveAll(trash); err != nil {
			return fmt.Errorf("remove snapshot %s: %w", victim.Dir, err)
		}
		m.log.Info().Str("dir", victim.Dir).Msg("snapshot pruned")
	}
	return nil
}
