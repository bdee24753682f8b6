// Package relay fans events out to connection wires. It knows nothing about
// rooms; callers pass recipient identities and the relay applies the delivery
// rule (everyone, everyone-except, one, all-on-grouping).
package relay

import (
	"context"
	"sync"
	"time"

	"github.com/okatkov/partyline/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultFwdTimeout = time.Second
)

type Relay struct {
	logger     zerolog.Logger
	mx         *sync.RWMutex
	wires      map[string]map[string]model.Wire // grouping -> connID -> wire
	fwdTimeout time.Duration
}

func NewRelay(logger *zerolog.Logger) *Relay {
	return &Relay{
		logger:     logger.With().Str("component", "relay").Logger(),
		mx:         &sync.RWMutex{},
		wires:      make(map[string]map[string]model.Wire),
		fwdTimeout: defaultFwdTimeout,
	}
}

// Attach registers a connection's wire on a grouping.
func (rl *Relay) Attach(grouping, connID string, wire model.Wire) {
	rl.mx.Lock()
	defer func() {
		rl.mx.Unlock()
		rl.logger.Debug().
			Str("grouping", grouping).
			Str("connID", connID).
			Msg("endpoint attached")
	}()

	grp, ok := rl.wires[grouping]
	if !ok {
		grp = make(map[string]model.Wire)
	}
	grp[connID] = wire
	rl.wires[grouping] = grp
}

// Detach deregisters a connection from a grouping. Idempotent.
func (rl *Relay) Detach(grouping, connID string) {
	rl.mx.Lock()
	defer func() {
		rl.mx.Unlock()
		rl.logger.Debug().
			Str("grouping", grouping).
			Str("connID", connID).
			Msg("endpoint detached")
	}()

	grp, ok := rl.wires[grouping]
	if ok {
		delete(grp, connID)
		rl.wires[grouping] = grp
	}
}

// ToConn narrowcasts an event to a single connection.
func (rl *Relay) ToConn(ctx context.Context, grouping, dst string, ev model.Event) {
	rl.mx.RLock()
	wire, ok := rl.wires[grouping][dst]
	rl.mx.RUnlock()

	if !ok {
		rl.logger.Debug().
			Str("grouping", grouping).
			Str("dst", dst).
			Str("event", ev.Name).
			Msg("cannot forward, dst not found")
		return
	}
	rl.send(ctx, ev, dst, wire.TX)
}

// ToRoom delivers an event to every identity in members, sender included.
func (rl *Relay) ToRoom(ctx context.Context, grouping string, members []string, ev model.Event) {
	rl.toMany(ctx, grouping, members, "", ev)
}

// ToRoomExcept delivers an event to every identity in members except one.
func (rl *Relay) ToRoomExcept(ctx context.Context, grouping string, members []string, except string, ev model.Event) {
	rl.toMany(ctx, grouping, members, except, ev)
}

// ToAll delivers an event to every connection attached to a grouping,
// regardless of room membership.
func (rl *Relay) ToAll(ctx context.Context, grouping string, ev model.Event) {
	rl.mx.RLock()
	grp := rl.wires[grouping]
	dsts := make([]string, 0, len(grp))
	for connID := range grp {
		dsts = append(dsts, connID)
	}
	rl.mx.RUnlock()

	rl.toMany(ctx, grouping, dsts, "", ev)
}

func (rl *Relay) toMany(ctx context.Context, grouping string, dsts []string, except string, ev model.Event) {
	rl.mx.RLock()
	grp := rl.wires[grouping]
	targets := make(map[string]model.Wire, len(dsts))
	for _, dst := range dsts {
		if wire, ok := grp[dst]; ok {
			targets[dst] = wire
		}
	}
	rl.mx.RUnlock()

	var sent bool
	for _, dst := range dsts {
		if dst == except {
			continue
		}
		wire, ok := targets[dst]
		if !ok {
			continue
		}
		evSent, canceled := rl.send(ctx, ev, dst, wire.TX)
		if canceled {
			break
		}
		if evSent {
			sent = true
		}
	}
	if !sent {
		rl.logger.Debug().
			Str("grouping", grouping).
			Str("event", ev.Name).
			Msg("fan-out did not reach anyone")
	}
}

func (rl *Relay) send(ctx context.Context, ev model.Event, dst string, tx chan<- model.Event) (bool, bool) {
	var sent, canceled bool
	tCh := time.NewTimer(rl.fwdTimeout)
	select {
	case <-ctx.Done():
		canceled = true
	case <-tCh.C:
		rl.logger.Error().Str("dst", dst).Str("event", ev.Name).Msg("dead endpoint")
	case tx <- ev:
		rl.logger.Debug().Str("dst", dst).Str("event", ev.Name).Msg("event is forwarded")
		sent = true
	}
	tCh.Stop()
	return sent, canceled
}
