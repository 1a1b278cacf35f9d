// Package snapshot persists FTL wear and aging state between simulation runs
// in a BadgerDB database.
//
// A snapshot carries only what survives a power cycle on a real drive: per
// block erase counts, retired blocks, and each die's aging clock. Loading a
// snapshot into a fresh FTL lets a run start from a worn array instead of a
// factory-new one.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/internal/telemetry"
	"github.com/marmos91/ftlgc/pkg/ftl"
)

// ErrNotFound is returned when no snapshot exists under a name.
var ErrNotFound = errors.New("snapshot: not found")

// Config configures the snapshot store.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string `mapstructure:"path" yaml:"path"`

	// InMemory keeps the database in memory only.
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`
}

// Snapshot is one saved array state.
type Snapshot struct {
	Name      string    `json:"name"`
	RunID     string    `json:"run_id"`
	Policy    string    `json:"policy"`
	Workload  string    `json:"workload"`
	CreatedAt time.Time `json:"created_at"`
	Stats     ftl.Stats `json:"stats"`
	State     ftl.State `json:"state"`
}

// Info is the listing view of a snapshot.
type Info struct {
	Name      string    `json:"name"`
	RunID     string    `json:"run_id"`
	Policy    string    `json:"policy"`
	Workload  string    `json:"workload"`
	CreatedAt time.Time `json:"created_at"`
	MeanWear  float64   `json:"mean_wear"`
}

// Store is a BadgerDB-backed snapshot store.
type Store struct {
	db      *badgerdb.DB
	metrics Metrics
}

// Open opens or creates the store.
func Open(cfg Config) (*Store, error) {
	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("snapshot: path is required")
		}
		opts = badgerdb.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %q: %w", cfg.Path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes snap under snap.Name, replacing any previous snapshot of that
// name. CreatedAt is set when zero.
func (s *Store) Save(ctx context.Context, snap *Snapshot) (err error) {
	start := time.Now()
	defer func() { s.observe(OpSave, start, err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.Name == "" {
		return fmt.Errorf("snapshot: name is required")
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanSnapshotIO)
	defer span.End()

	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keySnapshot(snap.Name), data)
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("snapshot: save %q: %w", snap.Name, err)
	}
	s.reportSize()

	logger.DebugCtx(ctx, "Snapshot saved",
		"name", snap.Name,
		logger.KeyPolicy, snap.Policy,
		logger.KeyRunID, snap.RunID)
	return nil
}

// Load reads the snapshot stored under name.
func (s *Store) Load(ctx context.Context, name string) (_ *Snapshot, err error) {
	start := time.Now()
	defer func() { s.observe(OpLoad, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanSnapshotGet)
	defer span.End()

	var snap *Snapshot
	err = s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keySnapshot(name))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			snap, err = decodeSnapshot(val)
			return err
		})
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	return snap, nil
}

// Delete removes the snapshot stored under name.
func (s *Store) Delete(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.observe(OpDelete, start, err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	err = s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keySnapshot(name)); err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		} else if err != nil {
			return err
		}
		return txn.Delete(keySnapshot(name))
	})
	if err == nil {
		s.reportSize()
	}
	return err
}

// List returns every stored snapshot ordered by name.
func (s *Store) List(ctx context.Context) (_ []Info, err error) {
	start := time.Now()
	defer func() { s.observe(OpList, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var infos []Info
	err = s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixSnapshot)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				snap, err := decodeSnapshot(val)
				if err != nil {
					return err
				}
				infos = append(infos, snap.Info())
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// Info returns the listing view of snap.
func (snap *Snapshot) Info() Info {
	var total uint64
	var n int
	for _, die := range snap.State.Dies {
		for _, c := range die.EraseCounts {
			total += uint64(c)
			n++
		}
	}
	mean := 0.0
	if n > 0 {
		mean = float64(total) / float64(n)
	}
	return Info{
		Name:      snap.Name,
		RunID:     snap.RunID,
		Policy:    snap.Policy,
		Workload:  snap.Workload,
		CreatedAt: snap.CreatedAt,
		MeanWear:  mean,
	}
}
