package model

import "encoding/json"

// Logical channel groupings multiplexed over one websocket connection.
const (
	ChannelChat   = "chat"
	ChannelUpdate = "update"
)

// Inbound event names.
const (
	EventSetName        = "setName"
	EventGenerateCode   = "generateCode"
	EventSendMessage    = "sendMessage"
	EventJoinVoiceRoom  = "joinVoiceRoom"
	EventSetID          = "setID"
	EventJoinRoom       = "joinRoom"
	EventCreateRoom     = "createRoom"
	EventUpdateWishlist = "updateWishlist"
)

// Outbound event names. EventGenerateCode and EventSetID are reused as
// acknowledgments of the inbound events with the same name.
const (
	EventBroadcastMessage   = "broadcastMessage"
	EventNewVoicePeer       = "newVoicePeer"
	EventExistingVoicePeers = "existingVoicePeers"
	EventInvalidRoomCode    = "invalidRoomCode"
	EventWishlistUpdated    = "wishlistUpdated"
)

// Event is the wire envelope for both directions. Payload stays raw until
// a handler decodes it; outbound events are built with NewEvent.
type Event struct {
	Channel string          `json:"channel"`
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEvent(channel, name string, payload any) (Event, error) {
	ev := Event{
		Channel: channel,
		Name:    name,
	}
	if payload == nil {
		return ev, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ev, err
	}
	ev.Payload = b
	return ev, nil
}

type NamePayload struct {
	Name string `json:"name"`
}

type RoomCodePayload struct {
	RoomCode string `json:"roomCode"`
}

type SendMessagePayload struct {
	Message  string `json:"message"`
	RoomName string `json:"roomName"`
}

type BroadcastMessagePayload struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Name    string `json:"name"`
}

type InvalidRoomCodePayload struct {
	Reason string `json:"reason"`
}

type IDPayload struct {
	ID string `json:"id"`
}

type PeersPayload struct {
	IDs []string `json:"ids"`
}

// WishlistPayload carries the whole wishlist; items are opaque to the server.
type WishlistPayload struct {
	Items []json.RawMessage `json:"items"`
}

// RoomInfo is a read-only registry snapshot used by the HTTP API.
type RoomInfo struct {
	Code          string `json:"room_code"`
	Members       int    `json:"members"`
	VoicePeers    int    `json:"voice_peers"`
	WishlistItems int    `json:"wishlist_items"`
}

type Wire struct {
	RX chan Event
	TX chan Event
}

func NewWire() Wire {
	return Wire{
		RX: make(chan Event),
		TX: make(chan Event),
	}
}
