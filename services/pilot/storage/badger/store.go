// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

// Key prefixes keep checkpoints and task records in separate ranges so
// prefix scans stay cheap.
const (
	checkpointPrefix = "cp/"
	taskPrefix       = "task/"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store persists checkpoints and task snapshots in BadgerDB.
//
// # Description
//
// Checkpoints must outlive the process: a task suspended for human input
// can be resumed hours later, possibly after a restart. Task snapshots
// are written at terminal status for later inspection.
//
// # Thread Safety
//
// Store is safe for concurrent use; BadgerDB transactions provide
// isolation.
type Store struct {
	db *badger.DB
	gc *GCRunner
}

// NewStore opens a BadgerDB-backed store with the given configuration.
//
// Inputs:
//
//	cfg - Database configuration. Use InMemoryConfig() for tests.
//
// Outputs:
//
//	*Store - Ready-to-use store. Caller must call Close() when done.
//	error - Non-nil if the database cannot be opened.
func NewStore(cfg Config) (*Store, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		gc, err := NewGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		store.gc = gc
		gc.Start()
	}
	return store, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.Stop()
	}
	return s.db.Close()
}

// SaveCheckpoint writes a checkpoint, overwriting any previous version.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *agent.Checkpoint) error {
	if cp == nil || cp.ID == "" {
		return errors.New("checkpoint must have an ID")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint %s: %w", cp.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(checkpointPrefix+cp.ID), data)
	})
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.ID, err)
	}
	return nil
}

// GetCheckpoint retrieves a checkpoint by ID.
//
// Outputs:
//
//	*agent.Checkpoint - The checkpoint, or nil with ErrNotFound.
//	error - ErrNotFound when the ID is unknown.
func (s *Store) GetCheckpoint(ctx context.Context, id string) (*agent.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cp agent.Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(checkpointPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cp)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("checkpoint %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint %s: %w", id, err)
	}
	return &cp, nil
}

// PendingCheckpoints returns all checkpoints still awaiting input,
// sorted by creation time ascending.
func (s *Store) PendingCheckpoints(ctx context.Context) ([]*agent.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pending []*agent.Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(checkpointPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var cp agent.Checkpoint
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &cp)
			})
			if err != nil {
				return err
			}
			if cp.Status == agent.CheckpointPending {
				pending = append(pending, &cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan checkpoints: %w", err)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Timestamp.Before(pending[j].Timestamp)
	})
	return pending, nil
}

// SaveTask writes a task snapshot keyed by session ID.
func (s *Store) SaveTask(ctx context.Context, snap *agent.Snapshot) error {
	if snap == nil || snap.SessionID == "" {
		return errors.New("snapshot must have a session ID")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", snap.SessionID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(taskPrefix+snap.SessionID), data)
	})
	if err != nil {
		return fmt.Errorf("save task %s: %w", snap.SessionID, err)
	}
	return nil
}

// GetTask retrieves a task snapshot by session ID.
func (s *Store) GetTask(ctx context.Context, sessionID string) (*agent.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snap agent.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(taskPrefix + sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("task %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", sessionID, err)
	}
	return &snap, nil
}

// ListTasks returns all stored session IDs, sorted for deterministic
// ordering.
func (s *Store) ListTasks(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(taskPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}
