// Package router is the coordination core: it owns connection sessions,
// demultiplexes inbound events into the chat and update groupings, and binds
// every event name to its delivery rule.
package router

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/okatkov/partyline/backend/model"
	"github.com/okatkov/partyline/backend/relay"
	"github.com/okatkov/partyline/backend/roomcode"
	"github.com/okatkov/partyline/backend/storage/memory"
	"github.com/rs/zerolog"
)

const guestSuffixLength = 4

// Session is the fixed-shape per-connection record. It is created at connect
// time and owned by the router for the lifetime of the connection. A session
// holds at most one room code per grouping; an empty code means unaffiliated.
type Session struct {
	ID         string
	Name       string
	ChatRoom   string
	UpdateRoom string
}

type handlerFunc func(ctx context.Context, sess *Session, payload json.RawMessage)

type (
	Config struct {
		Logger *zerolog.Logger
		Store  *memory.MemStore
		Relay  *relay.Relay
	}

	Router struct {
		logger zerolog.Logger
		store  *memory.MemStore
		relay  *relay.Relay

		mx       sync.Mutex
		sessions map[string]*Session
		handlers map[string]map[string]handlerFunc
	}
)

func NewRouter(cfg Config) *Router {
	r := &Router{
		logger:   cfg.Logger.With().Str("component", "router").Logger(),
		store:    cfg.Store,
		relay:    cfg.Relay,
		sessions: make(map[string]*Session),
	}
	r.handlers = map[string]map[string]handlerFunc{
		model.ChannelChat: {
			model.EventSetName:       r.handleSetName,
			model.EventGenerateCode:  r.handleChatJoinCode,
			model.EventSendMessage:   r.handleSendMessage,
			model.EventJoinVoiceRoom: r.handleJoinVoiceRoom,
		},
		model.ChannelUpdate: {
			model.EventSetName:        r.handleSetName,
			model.EventSetID:          r.handleSetID,
			model.EventCreateRoom:     r.handleCreateRoom,
			model.EventJoinRoom:       r.handleJoinRoom,
			model.EventUpdateWishlist: r.handleUpdateWishlist,
		},
	}
	return r
}

// Connect creates the session for a new connection, attaches its wire to both
// groupings, and starts consuming inbound events. Events from one connection
// are handled in arrival order; handlers across connections are serialized by
// the router's lock.
func (r *Router) Connect(ctx context.Context, connID string, wire model.Wire) {
	sess := &Session{
		ID:   connID,
		Name: "guest-" + roomcode.Generate(guestSuffixLength),
	}

	r.mx.Lock()
	r.sessions[connID] = sess
	r.mx.Unlock()

	r.relay.Attach(model.ChannelChat, connID, wire)
	r.relay.Attach(model.ChannelUpdate, connID, wire)

	r.logger.Debug().
		Str("connID", connID).
		Str("name", sess.Name).
		Msg("session connected")

	go r.dispatchLoop(ctx, sess, wire)
}

// Disconnect tears the session down: room membership is removed on every
// grouping, empty rooms are deleted from the registry, and the wires are
// detached. Idempotent.
func (r *Router) Disconnect(connID string) {
	r.mx.Lock()
	defer r.mx.Unlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return
	}
	delete(r.sessions, connID)

	if sess.ChatRoom != "" {
		r.leaveRoom(sess.ChatRoom, sess.ID)
	}
	if sess.UpdateRoom != "" && sess.UpdateRoom != sess.ChatRoom {
		r.leaveRoom(sess.UpdateRoom, sess.ID)
	}

	r.relay.Detach(model.ChannelChat, connID)
	r.relay.Detach(model.ChannelUpdate, connID)

	r.logger.Debug().
		Str("connID", connID).
		Msg("session disconnected")
}

func (r *Router) dispatchLoop(ctx context.Context, sess *Session, wire model.Wire) {
recvLoop:
	for {
		select {
		case <-ctx.Done():
			break recvLoop
		case ev, ok := <-wire.RX:
			if !ok {
				break recvLoop
			}
			r.dispatch(ctx, sess, ev)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, sess *Session, ev model.Event) {
	handler, ok := r.handlers[ev.Channel][ev.Name]
	if !ok {
		r.logger.Debug().
			Str("connID", sess.ID).
			Str("channel", ev.Channel).
			Str("event", ev.Name).
			Msg("unknown event dropped")
		return
	}

	// One handler runs to completion before the next; registry and room
	// mutations need no further coordination inside handlers.
	r.mx.Lock()
	defer r.mx.Unlock()

	// A frame can race connection teardown: the receiver hands over a last
	// event right before the read fails and Disconnect runs. Handling it
	// against the stale session would re-insert a dead connection into a
	// room with no removal path left.
	if cur, ok := r.sessions[sess.ID]; !ok || cur != sess {
		r.logger.Debug().
			Str("connID", sess.ID).
			Str("channel", ev.Channel).
			Str("event", ev.Name).
			Msg("event from disconnected session dropped")
		return
	}
	handler(ctx, sess, ev.Payload)
}

// leaveRoom removes the identity from a room and deletes the room from the
// registry once its member set is empty. Called with r.mx held.
func (r *Router) leaveRoom(code, connID string) {
	room, err := r.store.GetRoom(code)
	if err != nil {
		return
	}
	room.RemovePlayer(connID)
	if room.MemberCount() == 0 {
		r.store.RemoveRoom(code)
		r.logger.Debug().Str("roomCode", code).Msg("empty room removed")
	}
}

// leaveIfUnreferenced drops membership in prev unless another grouping of the
// same session still points at it.
func (r *Router) leaveIfUnreferenced(sess *Session, prev string) {
	if prev == "" || prev == sess.ChatRoom || prev == sess.UpdateRoom {
		return
	}
	r.leaveRoom(prev, sess.ID)
}

func (r *Router) handleSetName(_ context.Context, sess *Session, payload json.RawMessage) {
	var p model.NamePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.logger.Debug().Err(err).Str("connID", sess.ID).Msg("malformed setName dropped")
		return
	}
	sess.Name = p.Name
	r.logger.Debug().Str("connID", sess.ID).Str("name", p.Name).Msg("display name set")
}

func (r *Router) handleSetID(ctx context.Context, sess *Session, _ json.RawMessage) {
	ev, err := model.NewEvent(model.ChannelUpdate, model.EventSetID, model.IDPayload{ID: sess.ID})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to build setID event")
		return
	}
	r.relay.ToAll(ctx, model.ChannelUpdate, ev)
}

func (r *Router) handleCreateRoom(ctx context.Context, sess *Session, _ json.RawMessage) {
	code, room := r.store.CreateRoom()
	room.AddPlayer(sess.ID)

	prev := sess.UpdateRoom
	sess.UpdateRoom = code
	r.leaveIfUnreferenced(sess, prev)

	r.logger.Debug().
		Str("connID", sess.ID).
		Str("roomCode", code).
		Msg("room created")

	r.ackRoomCode(ctx, model.ChannelUpdate, sess.ID, code)
}

func (r *Router) handleJoinRoom(ctx context.Context, sess *Session, payload json.RawMessage) {
	code, room, ok := r.lookupRequestedRoom(ctx, model.ChannelUpdate, sess, payload)
	if !ok {
		return
	}

	room.AddPlayer(sess.ID)
	prev := sess.UpdateRoom
	sess.UpdateRoom = code
	r.leaveIfUnreferenced(sess, prev)

	r.logger.Debug().
		Str("connID", sess.ID).
		Str("roomCode", code).
		Msg("room joined")

	r.ackRoomCode(ctx, model.ChannelUpdate, sess.ID, code)

	// Catch-up sync: a joiner immediately learns the room's current wishlist.
	if items := room.Wishlist(); items != nil {
		ev, err := model.NewEvent(model.ChannelUpdate, model.EventWishlistUpdated, model.WishlistPayload{Items: items})
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to build wishlist event")
			return
		}
		r.relay.ToConn(ctx, model.ChannelUpdate, sess.ID, ev)
	}
}

func (r *Router) handleUpdateWishlist(ctx context.Context, sess *Session, payload json.RawMessage) {
	if sess.UpdateRoom == "" {
		r.logger.Debug().Str("connID", sess.ID).Msg("wishlist update from unaffiliated session dropped")
		return
	}
	room, err := r.store.GetRoom(sess.UpdateRoom)
	if err != nil {
		r.logger.Error().
			Str("connID", sess.ID).
			Str("roomCode", sess.UpdateRoom).
			Msg("session affiliated with unknown room")
		return
	}

	var p model.WishlistPayload
	if err = json.Unmarshal(payload, &p); err != nil {
		r.logger.Debug().Err(err).Str("connID", sess.ID).Msg("malformed wishlist update dropped")
		return
	}
	room.SetWishlist(p.Items)

	// Fan out the canonical value to every member, sender included.
	ev, err := model.NewEvent(model.ChannelUpdate, model.EventWishlistUpdated, model.WishlistPayload{Items: room.Wishlist()})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to build wishlist event")
		return
	}
	r.relay.ToRoom(ctx, model.ChannelUpdate, room.Members(), ev)
}

// handleChatJoinCode joins the chat grouping's room-scoped delivery group.
// The code is validated against the registry; chat and update groupings share
// one room membership mechanism.
func (r *Router) handleChatJoinCode(ctx context.Context, sess *Session, payload json.RawMessage) {
	code, room, ok := r.lookupRequestedRoom(ctx, model.ChannelChat, sess, payload)
	if !ok {
		return
	}

	room.AddPlayer(sess.ID)
	prev := sess.ChatRoom
	sess.ChatRoom = code
	r.leaveIfUnreferenced(sess, prev)

	r.logger.Debug().
		Str("connID", sess.ID).
		Str("roomCode", code).
		Msg("chat grouping joined room")

	r.ackRoomCode(ctx, model.ChannelChat, sess.ID, code)
}

func (r *Router) handleSendMessage(ctx context.Context, sess *Session, payload json.RawMessage) {
	if sess.ChatRoom == "" {
		r.logger.Debug().Str("connID", sess.ID).Msg("chat message from unaffiliated session dropped")
		return
	}
	room, err := r.store.GetRoom(sess.ChatRoom)
	if err != nil {
		r.logger.Error().
			Str("connID", sess.ID).
			Str("roomCode", sess.ChatRoom).
			Msg("session affiliated with unknown room")
		return
	}

	var p model.SendMessagePayload
	if err = json.Unmarshal(payload, &p); err != nil {
		r.logger.Debug().Err(err).Str("connID", sess.ID).Msg("malformed chat message dropped")
		return
	}

	ev, err := model.NewEvent(model.ChannelChat, model.EventBroadcastMessage, model.BroadcastMessagePayload{
		ID:      sess.ID,
		Message: p.Message,
		Name:    sess.Name,
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to build chat event")
		return
	}
	r.relay.ToRoomExcept(ctx, model.ChannelChat, room.Members(), sess.ID, ev)
}

func (r *Router) handleJoinVoiceRoom(ctx context.Context, sess *Session, payload json.RawMessage) {
	code, room, ok := r.lookupRequestedRoom(ctx, model.ChannelChat, sess, payload)
	if !ok {
		return
	}

	room.AddPlayer(sess.ID)
	prev := sess.ChatRoom
	sess.ChatRoom = code
	r.leaveIfUnreferenced(sess, prev)

	// Snapshot before joining, so the joiner never sees itself.
	others := make([]string, 0)
	for _, id := range room.VoicePeers() {
		if id != sess.ID {
			others = append(others, id)
		}
	}
	room.AddVoicePeer(sess.ID)

	r.logger.Debug().
		Str("connID", sess.ID).
		Str("roomCode", code).
		Int("peers", len(others)).
		Msg("voice mesh joined")

	// A sole joiner has no mesh to build; nothing fires.
	if len(others) == 0 {
		return
	}

	// Existing peers learn about the joiner first, then the joiner receives
	// the peer set it must dial.
	peerEv, err := model.NewEvent(model.ChannelChat, model.EventNewVoicePeer, model.IDPayload{ID: sess.ID})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to build voice peer event")
		return
	}
	r.relay.ToRoom(ctx, model.ChannelChat, others, peerEv)

	listEv, err := model.NewEvent(model.ChannelChat, model.EventExistingVoicePeers, model.PeersPayload{IDs: others})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to build voice peers event")
		return
	}
	r.relay.ToConn(ctx, model.ChannelChat, sess.ID, listEv)
}

// lookupRequestedRoom decodes a room code payload and resolves it against the
// registry. A miss answers the caller with invalidRoomCode and mutates nothing.
func (r *Router) lookupRequestedRoom(
	ctx context.Context,
	grouping string,
	sess *Session,
	payload json.RawMessage,
) (string, *memory.Room, bool) {
	var p model.RoomCodePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.logger.Debug().Err(err).Str("connID", sess.ID).Msg("malformed room code payload dropped")
		return "", nil, false
	}
	code := roomcode.Normalize(p.RoomCode)

	room, err := r.store.GetRoom(code)
	if err != nil {
		r.logger.Debug().
			Str("connID", sess.ID).
			Str("roomCode", code).
			Msg("join against unknown room code")
		ev, evErr := model.NewEvent(grouping, model.EventInvalidRoomCode, model.InvalidRoomCodePayload{
			Reason: "room " + code + " does not exist",
		})
		if evErr != nil {
			r.logger.Error().Err(evErr).Msg("failed to build invalid room code event")
			return "", nil, false
		}
		r.relay.ToConn(ctx, grouping, sess.ID, ev)
		return "", nil, false
	}
	return code, room, true
}

func (r *Router) ackRoomCode(ctx context.Context, grouping, connID, code string) {
	ev, err := model.NewEvent(grouping, model.EventGenerateCode, model.RoomCodePayload{RoomCode: code})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to build room code ack")
		return
	}
	r.relay.ToConn(ctx, grouping, connID, ev)
}
