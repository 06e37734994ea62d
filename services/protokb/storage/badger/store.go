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
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/protokb/services/protokb/codec"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

// keyPrefix namespaces prototype records; the rest of the key is the IRI.
const keyPrefix = "proto/"

func prototypeKey(id kb.ID) []byte {
	return []byte(keyPrefix + id.String())
}

// Store keeps prototype definitions keyed by identifier.
//
// Description:
//
//	Each prototype is stored as one JSON document under "proto/<iri>".
//	Badger orders keys bytewise, so List returns prototypes sorted by
//	identifier. The store does not check consistency; a knowledge base
//	built from its contents does.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *DB
	logger *slog.Logger
}

// NewStore wraps an open database.
func NewStore(db *DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// DB returns the underlying database.
func (s *Store) DB() *DB { return s.db }

// Put writes the given prototypes, replacing any stored definition with
// the same identifier.
//
// Description:
//
//	Writes go through a WriteBatch, so large imports are split into
//	several commits. A failure part way can leave a prefix written.
func (s *Store) Put(ctx context.Context, ps ...*kb.Prototype) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	var buf bytes.Buffer
	for _, p := range ps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}
		buf.Reset()
		if err := codec.JSON.SerializeOne(&buf, p); err != nil {
			return err
		}
		value := bytes.Clone(buf.Bytes())
		if err := wb.Set(prototypeKey(p.ID()), value); err != nil {
			return fmt.Errorf("store %s: %w", p.ID(), err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush prototypes: %w", err)
	}

	s.logger.Debug("stored prototypes", slog.Int("count", len(ps)))
	return nil
}

// Get returns the stored definition of id.
//
// Outputs:
//   - *kb.Prototype: The prototype.
//   - error: Wraps knowledgebase.ErrNotDefined when absent, or
//     codec.ErrMalformed when the record cannot be decoded.
func (s *Store) Get(ctx context.Context, id kb.ID) (*kb.Prototype, error) {
	var p *kb.Prototype
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(prototypeKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", kb.ErrNotDefined, id)
		}
		if err != nil {
			return err
		}
		p, err = decodeItem(item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes id. Deleting an absent identifier is not an error.
func (s *Store) Delete(ctx context.Context, id kb.ID) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(prototypeKey(id))
	})
}

// List returns every stored prototype in identifier order.
func (s *Store) List(ctx context.Context) ([]*kb.Prototype, error) {
	var out []*kb.Prototype
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         []byte(keyPrefix),
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of stored prototypes without decoding them.
func (s *Store) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear removes every stored prototype.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if err := s.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return fmt.Errorf("drop prototypes: %w", err)
	}
	return nil
}

func decodeItem(item *badger.Item) (*kb.Prototype, error) {
	var p *kb.Prototype
	err := item.Value(func(val []byte) error {
		var err error
		p, err = codec.JSON.DeserializeOne(bytes.NewReader(val))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode record %q: %w", item.Key(), err)
	}
	return p, nil
}
