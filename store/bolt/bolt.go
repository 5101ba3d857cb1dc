/* Copyright 2026 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package bolt is a BoltDB-backed session.MessageStore.
//
// One database file holds any number of sessions.  Each session gets
// a top-level bucket named by its SessionID string with two nested
// buckets: "messages", keyed by big-endian sequence number, and
// "meta", which holds the sequence numbers and creation time.
package bolt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Comcast/fixsession/session"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	messagesBucket = []byte("messages")
	metaBucket     = []byte("meta")
	stateKey       = []byte("state")

	ErrNotOpen = errors.New("storage not open")
)

// Storage is a BoltDB file that can make stores for many sessions.
type Storage struct {
	Logger *zap.Logger

	filename string
	db       *bolt.DB
}

func NewStorage(filename string, logger *zap.Logger) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{
		Logger:   logger,
		filename: filename,
	}
}

// Open opens the database file, creating it if necessary.
func (s *Storage) Open() error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.filename, err)
	}
	s.db = db
	return nil
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create implements session.StoreFactory.
func (s *Storage) Create(id session.SessionID) (session.MessageStore, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	st := &Store{
		storage: s,
		name:    []byte(id.String()),
		logger:  s.Logger.With(zap.Stringer("session", id)),
	}
	if err := st.init(); err != nil {
		return nil, err
	}
	return st, nil
}

// Sessions lists the session names that have buckets.
func (s *Storage) Sessions() ([]string, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}

// meta is the persisted form of a store's counters.
type meta struct {
	Sender  int       `json:"sender"`
	Target  int       `json:"target"`
	Created time.Time `json:"created"`
}

// Store is one session's view of a Storage.
//
// Counters are cached and written through on every change.
type Store struct {
	sync.Mutex

	storage *Storage
	name    []byte
	logger  *zap.Logger
	m       meta
}

func seqKey(seq int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(seq))
	return k
}

func (st *Store) buckets(tx *bolt.Tx) (*bolt.Bucket, *bolt.Bucket, error) {
	b, err := tx.CreateBucketIfNotExists(st.name)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := b.CreateBucketIfNotExists(messagesBucket)
	if err != nil {
		return nil, nil, err
	}
	md, err := b.CreateBucketIfNotExists(metaBucket)
	if err != nil {
		return nil, nil, err
	}
	return msgs, md, nil
}

func (st *Store) putMeta(md *bolt.Bucket, m meta) error {
	js, err := json.Marshal(&m)
	if err != nil {
		return err
	}
	return md.Put(stateKey, js)
}

// init loads the counters or writes fresh ones.
func (st *Store) init() error {
	return st.storage.db.Update(func(tx *bolt.Tx) error {
		_, md, err := st.buckets(tx)
		if err != nil {
			return err
		}
		if js := md.Get(stateKey); js != nil {
			return json.Unmarshal(js, &st.m)
		}
		st.m = meta{Sender: 1, Target: 1, Created: time.Now().UTC()}
		st.logger.Debug("new store")
		return st.putMeta(md, st.m)
	})
}

// update writes m and, when raw isn't nil, the message at seq.  The
// cache changes only if the transaction commits.
func (st *Store) update(m meta, seq int, raw []byte) error {
	err := st.storage.db.Update(func(tx *bolt.Tx) error {
		msgs, md, err := st.buckets(tx)
		if err != nil {
			return err
		}
		if raw != nil {
			if err := msgs.Put(seqKey(seq), raw); err != nil {
				return err
			}
		}
		return st.putMeta(md, m)
	})
	if err != nil {
		return err
	}
	st.m = m
	return nil
}

func (st *Store) NextSenderMsgSeqNum() int {
	st.Lock()
	defer st.Unlock()
	return st.m.Sender
}

func (st *Store) NextTargetMsgSeqNum() int {
	st.Lock()
	defer st.Unlock()
	return st.m.Target
}

func (st *Store) SetNextSenderMsgSeqNum(next int) error {
	st.Lock()
	defer st.Unlock()
	m := st.m
	m.Sender = next
	return st.update(m, 0, nil)
}

func (st *Store) SetNextTargetMsgSeqNum(next int) error {
	st.Lock()
	defer st.Unlock()
	m := st.m
	m.Target = next
	return st.update(m, 0, nil)
}

func (st *Store) IncrNextSenderMsgSeqNum() error {
	st.Lock()
	defer st.Unlock()
	m := st.m
	m.Sender++
	return st.update(m, 0, nil)
}

func (st *Store) IncrNextTargetMsgSeqNum() error {
	st.Lock()
	defer st.Unlock()
	m := st.m
	m.Target++
	return st.update(m, 0, nil)
}

func (st *Store) CreationTime() time.Time {
	st.Lock()
	defer st.Unlock()
	return st.m.Created
}

func (st *Store) SaveMessage(seqNum int, raw []byte) error {
	st.Lock()
	defer st.Unlock()
	return st.update(st.m, seqNum, raw)
}

func (st *Store) SaveMessageAndIncrNextSenderMsgSeqNum(seqNum int, raw []byte) error {
	st.Lock()
	defer st.Unlock()
	m := st.m
	m.Sender++
	return st.update(m, seqNum, raw)
}

func (st *Store) GetMessages(begin, end int) ([][]byte, error) {
	st.Lock()
	defer st.Unlock()
	var acc [][]byte
	err := st.storage.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(st.name)
		if b == nil {
			return nil
		}
		msgs := b.Bucket(messagesBucket)
		if msgs == nil {
			return nil
		}
		c := msgs.Cursor()
		last := seqKey(end)
		for k, v := c.Seek(seqKey(begin)); k != nil; k, v = c.Next() {
			if 0 < compare(k, last) {
				break
			}
			// Values are only valid for the life of the transaction.
			acc = append(acc, append([]byte(nil), v...))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func compare(a, b []byte) int {
	x, y := binary.BigEndian.Uint64(a), binary.BigEndian.Uint64(b)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// Refresh rereads the counters, which another process might have
// changed.
func (st *Store) Refresh() error {
	st.Lock()
	defer st.Unlock()
	return st.storage.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(st.name)
		if b == nil {
			return nil
		}
		md := b.Bucket(metaBucket)
		if md == nil {
			return nil
		}
		js := md.Get(stateKey)
		if js == nil {
			return nil
		}
		var m meta
		if err := json.Unmarshal(js, &m); err != nil {
			return err
		}
		st.m = m
		return nil
	})
}

func (st *Store) Reset() error {
	st.Lock()
	defer st.Unlock()
	m := meta{Sender: 1, Target: 1, Created: time.Now().UTC()}
	err := st.storage.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(st.name) != nil {
			if err := tx.DeleteBucket(st.name); err != nil {
				return err
			}
		}
		_, md, err := st.buckets(tx)
		if err != nil {
			return err
		}
		return st.putMeta(md, m)
	})
	if err != nil {
		return err
	}
	st.logger.Debug("store reset")
	st.m = m
	return nil
}

// Close is a no-op.  The Storage owns the database.
func (st *Store) Close() error {
	return nil
}
