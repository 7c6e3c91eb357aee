package main

import (
	"context"

	"github.com/warfare-dev/extension/internal/eventbus"
	"github.com/warfare-dev/extension/internal/flags"
	"github.com/warfare-dev/extension/pkg/core"
)

// host callbacks
const (
	callbackReady       = ":EXT:READY:"
	callbackVersion     = ":VERSION:"
	callbackSetUp       = ":FLAGS:SETUP:"
	callbackDiscovered  = ":FLAG:DISCOVERED:"
	callbackCaptured    = ":FLAG:CAPTURED:"
	callbackNeutralized = ":FLAG:NEUTRALIZED:"
	callbackWon         = ":FLAGS:WON:"
	callbackTornDown    = ":FLAGS:TORNDOWN:"
	callbackAdvance     = ":PHASE:ADVANCE:"
)

// callbacker is the part of the host bridge the notifier writes to.
type callbacker interface {
	Callback(name string, args ...any) error
}

// phaseAdvancer asks the host to end the current phase once a rotation is won.
type phaseAdvancer struct {
	host callbacker
}

func (a phaseAdvancer) AdvanceToNextPhase(_ context.Context, winner core.Team) error {
	return a.host.Callback(callbackAdvance, winner.ID, winner.Faction.Name)
}

// subscribeNotifier forwards rotation events to the host so it can announce
// them in game. Callbacks are written synchronously to keep their order.
func subscribeNotifier(bus *eventbus.Bus, host callbacker) (unsubscribe func()) {
	name := eventbus.Named("host-notifier")
	unsubs := []func(){
		eventbus.Subscribe(bus, func(_ context.Context, ev flags.FlagsSetUp) error {
			names := make([]string, len(ev.Flags))
			for i, f := range ev.Flags {
				names[i] = f.Name
			}
			return host.Callback(callbackSetUp, ev.RotationID, names)
		}, name),
		eventbus.Subscribe(bus, func(_ context.Context, ev flags.FlagDiscovered) error {
			return host.Callback(callbackDiscovered, ev.Flag.Name, ev.Team.ID)
		}, name),
		eventbus.Subscribe(bus, func(_ context.Context, ev flags.FlagCaptured) error {
			return host.Callback(callbackCaptured, ev.Flag.Name, ev.Capturer.ID)
		}, name),
		eventbus.Subscribe(bus, func(_ context.Context, ev flags.FlagNeutralized) error {
			return host.Callback(callbackNeutralized, ev.Flag.Name, ev.Neutralizer.ID, ev.PreviousLeader.ID)
		}, name),
		eventbus.Subscribe(bus, func(_ context.Context, ev flags.FlagRotationWon) error {
			return host.Callback(callbackWon, ev.RotationID, ev.Winner.ID)
		}, name),
		eventbus.Subscribe(bus, func(_ context.Context, ev flags.FlagsTornDown) error {
			return host.Callback(callbackTornDown, ev.RotationID, ev.Winner.ID)
		}, name),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
