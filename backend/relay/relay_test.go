package relay

import (
	"context"
	"testing"
	"time"

	"github.com/okatkov/partyline/backend/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRelay() *Relay {
	logger := zerolog.Nop()
	return NewRelay(&logger)
}

func bufferedWire() model.Wire {
	return model.Wire{
		RX: make(chan model.Event, 8),
		TX: make(chan model.Event, 8),
	}
}

func drain(wire model.Wire) []model.Event {
	var out []model.Event
	for {
		select {
		case ev := <-wire.TX:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestToConn(t *testing.T) {
	rl := newTestRelay()
	ctx := context.Background()

	wa, wb := bufferedWire(), bufferedWire()
	rl.Attach(model.ChannelChat, "a", wa)
	rl.Attach(model.ChannelChat, "b", wb)

	ev, err := model.NewEvent(model.ChannelChat, model.EventBroadcastMessage, nil)
	require.NoError(t, err)

	rl.ToConn(ctx, model.ChannelChat, "a", ev)
	assert.Len(t, drain(wa), 1)
	assert.Empty(t, drain(wb))

	// unknown destination is a logged no-op
	rl.ToConn(ctx, model.ChannelChat, "nobody", ev)
}

func TestToRoomIncludesEveryone(t *testing.T) {
	rl := newTestRelay()
	ctx := context.Background()

	wa, wb, wc := bufferedWire(), bufferedWire(), bufferedWire()
	rl.Attach(model.ChannelUpdate, "a", wa)
	rl.Attach(model.ChannelUpdate, "b", wb)
	rl.Attach(model.ChannelUpdate, "c", wc)

	ev, err := model.NewEvent(model.ChannelUpdate, model.EventWishlistUpdated, nil)
	require.NoError(t, err)

	rl.ToRoom(ctx, model.ChannelUpdate, []string{"a", "b"}, ev)
	assert.Len(t, drain(wa), 1)
	assert.Len(t, drain(wb), 1)
	assert.Empty(t, drain(wc), "non-member must not receive room fan-out")
}

func TestToRoomExceptSkipsSender(t *testing.T) {
	rl := newTestRelay()
	ctx := context.Background()

	wa, wb := bufferedWire(), bufferedWire()
	rl.Attach(model.ChannelChat, "a", wa)
	rl.Attach(model.ChannelChat, "b", wb)

	ev, err := model.NewEvent(model.ChannelChat, model.EventBroadcastMessage, nil)
	require.NoError(t, err)

	rl.ToRoomExcept(ctx, model.ChannelChat, []string{"a", "b"}, "a", ev)
	assert.Empty(t, drain(wa))
	assert.Len(t, drain(wb), 1)
}

func TestToAll(t *testing.T) {
	rl := newTestRelay()
	ctx := context.Background()

	wa, wb, wc := bufferedWire(), bufferedWire(), bufferedWire()
	rl.Attach(model.ChannelUpdate, "a", wa)
	rl.Attach(model.ChannelUpdate, "b", wb)
	rl.Attach(model.ChannelChat, "c", wc)

	ev, err := model.NewEvent(model.ChannelUpdate, model.EventSetID, model.IDPayload{ID: "a"})
	require.NoError(t, err)

	rl.ToAll(ctx, model.ChannelUpdate, ev)
	assert.Len(t, drain(wa), 1)
	assert.Len(t, drain(wb), 1)
	assert.Empty(t, drain(wc), "other grouping must not receive the broadcast")
}

func TestDetach(t *testing.T) {
	rl := newTestRelay()
	ctx := context.Background()

	wa := bufferedWire()
	rl.Attach(model.ChannelChat, "a", wa)
	rl.Detach(model.ChannelChat, "a")
	rl.Detach(model.ChannelChat, "a") // idempotent

	ev, err := model.NewEvent(model.ChannelChat, model.EventBroadcastMessage, nil)
	require.NoError(t, err)

	rl.ToConn(ctx, model.ChannelChat, "a", ev)
	rl.ToAll(ctx, model.ChannelChat, ev)
	assert.Empty(t, drain(wa))
}

func TestDeadEndpointSkipped(t *testing.T) {
	rl := newTestRelay()
	rl.fwdTimeout = 10 * time.Millisecond
	ctx := context.Background()

	// nobody reads this wire: the send must time out instead of wedging
	dead := model.Wire{TX: make(chan model.Event)}
	live := bufferedWire()
	rl.Attach(model.ChannelChat, "dead", dead)
	rl.Attach(model.ChannelChat, "live", live)

	ev, err := model.NewEvent(model.ChannelChat, model.EventBroadcastMessage, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		rl.ToRoom(ctx, model.ChannelChat, []string{"dead", "live"}, ev)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fan-out wedged on a dead endpoint")
	}
	assert.Len(t, drain(live), 1)
	assert.Empty(t, drain(dead))
}

func TestSendCanceledContext(t *testing.T) {
	rl := newTestRelay()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// full unbuffered wire: only the canceled context lets the send return
	wa := model.Wire{TX: make(chan model.Event)}
	rl.Attach(model.ChannelChat, "a", wa)

	ev, err := model.NewEvent(model.ChannelChat, model.EventBroadcastMessage, nil)
	require.NoError(t, err)

	rl.ToRoom(ctx, model.ChannelChat, []string{"a"}, ev)
}
