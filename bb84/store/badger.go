package store

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/alan-christopher/bb84sim/bb84"
)

const keyPrefix = "snap:"

// ErrNotFound is returned when a named snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// BadgerOpts configures a BadgerStore.
type BadgerOpts struct {
	// Dir is the database directory. Empty keeps everything in memory.
	Dir string

	// Logger receives badger's own log output. Defaults to a logger that
	// only reports errors.
	Logger *logrus.Logger
}

// A BadgerStore keeps named snapshots in an embedded BadgerDB. Values are the
// framed proto encoding compressed with zstd.
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Logger
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// OpenBadger opens (creating if needed) a snapshot database.
func OpenBadger(opts BadgerOpts) (*BadgerStore, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.ErrorLevel)
	}
	bopts := badger.DefaultOptions(opts.Dir).WithLogger(log)
	if opts.Dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &BadgerStore{db: db, log: log, enc: enc, dec: dec}, nil
}

func snapKey(name string) []byte {
	return []byte(keyPrefix + name)
}

// Save stores snap under name, replacing any previous snapshot of that name.
func (s *BadgerStore) Save(name string, snap bb84.Snapshot) error {
	if name == "" {
		return errors.New("snapshot name must not be empty")
	}
	var buf bytes.Buffer
	if err := EncodeProto(&buf, snap); err != nil {
		return err
	}
	value := s.enc.EncodeAll(buf.Bytes(), nil)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapKey(name), value)
	})
	if err != nil {
		return fmt.Errorf("saving snapshot %q: %w", name, err)
	}
	s.log.WithFields(logrus.Fields{
		"name":  name,
		"step":  snap.CurrentStep,
		"bytes": len(value),
		"raw":   buf.Len(),
	}).Debug("saved snapshot")
	return nil
}

func (s *BadgerStore) get(name string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapKey(name))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %q: %w", name, err)
	}
	raw, err := s.dec.DecodeAll(value, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot %q: %w", name, err)
	}
	return raw, nil
}

// Load returns the snapshot stored under name.
func (s *BadgerStore) Load(name string) (bb84.Snapshot, error) {
	raw, err := s.get(name)
	if err != nil {
		return bb84.Snapshot{}, err
	}
	snap, _, err := DecodeProto(bytes.NewReader(raw))
	if err != nil {
		return bb84.Snapshot{}, fmt.Errorf("decoding snapshot %q: %w", name, err)
	}
	return snap, nil
}

// An Entry names a stored snapshot and summarizes it.
type Entry struct {
	Name string
	Header
}

// List returns every stored snapshot, sorted by name.
func (s *BadgerStore) List() ([]Entry, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		raw, err := s.get(name)
		if err != nil {
			return nil, err
		}
		h, err := DecodeHeader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decoding snapshot %q: %w", name, err)
		}
		entries = append(entries, Entry{Name: name, Header: h})
	}
	return entries, nil
}

// Delete removes the snapshot stored under name.
func (s *BadgerStore) Delete(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(snapKey(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %q", ErrNotFound, name)
			}
			return err
		}
		return txn.Delete(snapKey(name))
	})
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}
