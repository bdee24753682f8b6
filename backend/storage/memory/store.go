// Package memory holds the process-wide room registry. A single process owns
// all room state; scaling to multiple workers means replacing this store with
// a coordinated shared one.
package memory

import (
	"errors"
	"sync"

	"github.com/okatkov/partyline/backend/model"
	"github.com/okatkov/partyline/backend/roomcode"
)

var (
	ErrRoomNotFound = errors.New("room is not found")
)

type MemStore struct {
	mx      *sync.Mutex
	db      map[string]*Room
	codeLen int
}

func NewMemStore(codeLength int) *MemStore {
	if codeLength <= 0 {
		codeLength = roomcode.DefaultLength
	}
	return &MemStore{
		mx:      &sync.Mutex{},
		db:      make(map[string]*Room),
		codeLen: codeLength,
	}
}

// CreateRoom allocates a fresh code and inserts a new empty room under it.
// Collisions are retried until a free code is found; with a 32-character
// alphabet and 6-character codes the expected retry count at realistic room
// counts is effectively zero, so no retry cap is imposed.
func (ms *MemStore) CreateRoom() (string, *Room) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	var code string
	for {
		code = roomcode.Generate(ms.codeLen)
		if _, ok := ms.db[code]; !ok {
			break
		}
	}
	room := newRoom(code)
	ms.db[code] = room
	return code, room
}

func (ms *MemStore) GetRoom(code string) (*Room, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RemoveRoom deletes the entry for code. Removing an absent code is a no-op.
func (ms *MemStore) RemoveRoom(code string) {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	delete(ms.db, code)
}

// Info returns a read-only snapshot of a room for the HTTP API.
func (ms *MemStore) Info(code string) (model.RoomInfo, error) {
	room, err := ms.GetRoom(code)
	if err != nil {
		return model.RoomInfo{}, err
	}
	return model.RoomInfo{
		Code:          room.Code(),
		Members:       room.MemberCount(),
		VoicePeers:    room.VoicePeerCount(),
		WishlistItems: len(room.Wishlist()),
	}, nil
}

func (ms *MemStore) Len() int {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	return len(ms.db)
}
