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

package session

import (
	"sort"
	"sync"
	"time"
)

// MessageStore keeps a session's sequence numbers and the messages it
// has sent, for resends.
//
// A durable implementation must have persisted a change by the time
// the method returns.
type MessageStore interface {
	NextSenderMsgSeqNum() int
	NextTargetMsgSeqNum() int
	SetNextSenderMsgSeqNum(next int) error
	SetNextTargetMsgSeqNum(next int) error
	IncrNextSenderMsgSeqNum() error
	IncrNextTargetMsgSeqNum() error

	// CreationTime is when the store was made or last reset.
	CreationTime() time.Time

	// SaveMessage stores an outbound message by sequence number.
	SaveMessage(seqNum int, raw []byte) error

	// SaveMessageAndIncrNextSenderMsgSeqNum stores a message and
	// advances the sender sequence number together.
	SaveMessageAndIncrNextSenderMsgSeqNum(seqNum int, raw []byte) error

	// GetMessages returns the stored messages in [begin, end] in
	// sequence order.  Missing ones are skipped.
	GetMessages(begin, end int) ([][]byte, error)

	// Refresh reloads state from the backing storage.
	Refresh() error

	// Reset sets both sequence numbers to 1, drops stored messages
	// and renews the creation time.
	Reset() error

	Close() error
}

// StoreFactory makes a store for a session.
type StoreFactory interface {
	Create(id SessionID) (MessageStore, error)
}

// StoreFactoryFunc adapts a function to a StoreFactory.
type StoreFactoryFunc func(id SessionID) (MessageStore, error)

func (f StoreFactoryFunc) Create(id SessionID) (MessageStore, error) {
	return f(id)
}

// MemoryStore is a MessageStore that keeps everything in memory.
type MemoryStore struct {
	sync.Mutex

	sender, target int
	created        time.Time
	messages       map[int][]byte
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.reset()
	return s
}

// MemoryStoreFactory makes MemoryStores.
var MemoryStoreFactory = StoreFactoryFunc(func(SessionID) (MessageStore, error) {
	return NewMemoryStore(), nil
})

func (s *MemoryStore) reset() {
	s.sender, s.target = 1, 1
	s.created = time.Now().UTC()
	s.messages = make(map[int][]byte)
}

func (s *MemoryStore) NextSenderMsgSeqNum() int {
	s.Lock()
	defer s.Unlock()
	return s.sender
}

func (s *MemoryStore) NextTargetMsgSeqNum() int {
	s.Lock()
	defer s.Unlock()
	return s.target
}

func (s *MemoryStore) SetNextSenderMsgSeqNum(next int) error {
	s.Lock()
	s.sender = next
	s.Unlock()
	return nil
}

func (s *MemoryStore) SetNextTargetMsgSeqNum(next int) error {
	s.Lock()
	s.target = next
	s.Unlock()
	return nil
}

func (s *MemoryStore) IncrNextSenderMsgSeqNum() error {
	s.Lock()
	s.sender++
	s.Unlock()
	return nil
}

func (s *MemoryStore) IncrNextTargetMsgSeqNum() error {
	s.Lock()
	s.target++
	s.Unlock()
	return nil
}

func (s *MemoryStore) CreationTime() time.Time {
	s.Lock()
	defer s.Unlock()
	return s.created
}

func (s *MemoryStore) SaveMessage(seqNum int, raw []byte) error {
	s.Lock()
	s.messages[seqNum] = append([]byte(nil), raw...)
	s.Unlock()
	return nil
}

func (s *MemoryStore) SaveMessageAndIncrNextSenderMsgSeqNum(seqNum int, raw []byte) error {
	s.Lock()
	s.messages[seqNum] = append([]byte(nil), raw...)
	s.sender++
	s.Unlock()
	return nil
}

func (s *MemoryStore) GetMessages(begin, end int) ([][]byte, error) {
	s.Lock()
	defer s.Unlock()
	seqs := make([]int, 0, len(s.messages))
	for n := range s.messages {
		if begin <= n && n <= end {
			seqs = append(seqs, n)
		}
	}
	sort.Ints(seqs)
	acc := make([][]byte, 0, len(seqs))
	for _, n := range seqs {
		acc = append(acc, s.messages[n])
	}
	return acc, nil
}

// Refresh does nothing since memory is the only copy.
func (s *MemoryStore) Refresh() error {
	return nil
}

func (s *MemoryStore) Reset() error {
	s.Lock()
	s.reset()
	s.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
