package memory

import (
	"encoding/json"
	"sync"
)

// Room is one live session: a member set, the voice-signaling subset of that
// set, and the shared wishlist. Instances are owned by the MemStore; members
// hold only the code.
type Room struct {
	code string

	mx       *sync.Mutex
	members  map[string]struct{}
	voice    map[string]struct{}
	wishlist []json.RawMessage
}

func newRoom(code string) *Room {
	return &Room{
		code:    code,
		mx:      &sync.Mutex{},
		members: make(map[string]struct{}),
		voice:   make(map[string]struct{}),
	}
}

func (r *Room) Code() string {
	return r.code
}

// AddPlayer inserts a connection identity into the member set.
// Adding an existing member is a no-op.
func (r *Room) AddPlayer(connID string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.members[connID] = struct{}{}
}

// RemovePlayer removes the identity from the member set and the voice subset.
// The caller is responsible for checking MemberCount afterwards and removing
// the room from the store when it reaches zero.
func (r *Room) RemovePlayer(connID string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	delete(r.members, connID)
	delete(r.voice, connID)
}

func (r *Room) MemberCount() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.members)
}

// Members returns a snapshot of the member set. Order is not meaningful.
func (r *Room) Members() []string {
	r.mx.Lock()
	defer r.mx.Unlock()
	out := make([]string, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	return out
}

// AddVoicePeer marks the identity as part of the voice-signaling mesh.
func (r *Room) AddVoicePeer(connID string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.voice[connID] = struct{}{}
}

// VoicePeers returns a snapshot of the voice-signaling subset.
func (r *Room) VoicePeers() []string {
	r.mx.Lock()
	defer r.mx.Unlock()
	out := make([]string, 0, len(r.voice))
	for id := range r.voice {
		out = append(out, id)
	}
	return out
}

func (r *Room) VoicePeerCount() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.voice)
}

// SetWishlist replaces the whole wishlist. Last write wins; there is no merge.
func (r *Room) SetWishlist(items []json.RawMessage) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if items == nil {
		items = []json.RawMessage{}
	}
	r.wishlist = items
}

// Wishlist returns a copy of the current wishlist, or nil if none was ever
// written.
func (r *Room) Wishlist() []json.RawMessage {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.wishlist == nil {
		return nil
	}
	out := make([]json.RawMessage, len(r.wishlist))
	copy(out, r.wishlist)
	return out
}
