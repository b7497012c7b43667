package input

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zortos293/OpenNOW-sub000/protocol"
)

// PollInterval is the controller poll period. 1ms keeps added input latency
// under the frame budget of even a 240Hz session.
const PollInterval = time.Millisecond

// flagConnected is the gamepad event flags field value for a present device.
const flagConnected uint16 = 1

// rumbleIndefinite is the wire duration meaning the effect runs until a
// stop command arrives.
const rumbleIndefinite uint16 = 65535

// rumbleEffect is one queued vibration command.
type rumbleEffect struct {
	leftMotor  uint8
	rightMotor uint8
	duration   time.Duration
	indefinite bool
}

func (e rumbleEffect) isStop() bool {
	return e.leftMotor == 0 && e.rightMotor == 0
}

// Poller runs the controller poll loop. On any state change it emits one
// complete-state Gamepad event per device. Wheels are detected by name and
// excluded from gamepad handling.
type Poller struct {
	log     *slog.Logger
	backend Backend

	// events receives encoded-ready gamepad events. Sends never block; a
	// full channel drops the event, the next tick resends current state.
	events chan<- protocol.Gamepad

	// now returns the capture timestamp in microseconds.
	now func() uint64

	mu       sync.Mutex
	queued   map[uint8]rumbleEffect
	expiries map[uint8]time.Time

	last     map[uint8]ControllerState
	excluded map[uint8]bool
}

// NewPoller wires a hardware backend to an event channel. now supplies
// capture timestamps, typically protocol.Encoder.TimestampUs.
func NewPoller(backend Backend, events chan<- protocol.Gamepad, now func() uint64, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		log:      log.With("component", "controller"),
		backend:  backend,
		events:   events,
		now:      now,
		queued:   make(map[uint8]rumbleEffect),
		expiries: make(map[uint8]time.Time),
		last:     make(map[uint8]ControllerState),
		excluded: make(map[uint8]bool),
	}
}

// QueueRumble schedules a vibration effect for a controller. It is applied
// on the next poll tick; queuing from the output-event path never touches
// the hardware directly. A duration of 65535 runs until stopped.
func (p *Poller) QueueRumble(controllerID, leftMotor, rightMotor uint8, durationMs uint16) {
	p.mu.Lock()
	p.queued[controllerID] = rumbleEffect{
		leftMotor:  leftMotor,
		rightMotor: rightMotor,
		duration:   time.Duration(durationMs) * time.Millisecond,
		indefinite: durationMs == rumbleIndefinite,
	}
	p.mu.Unlock()
}

// StopRumble queues the stop command for one controller.
func (p *Poller) StopRumble(controllerID uint8) {
	p.QueueRumble(controllerID, 0, 0, 0)
}

// StopAllRumble queues stop commands for every controller with an active
// effect.
func (p *Poller) StopAllRumble() {
	p.mu.Lock()
	for id := range p.expiries {
		p.queued[id] = rumbleEffect{}
	}
	clear(p.expiries)
	p.mu.Unlock()
}

// RumbleActive reports whether any controller has an unexpired effect.
func (p *Poller) RumbleActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.expiries) > 0
}

// Run polls until ctx is canceled. Stop latency is bounded by one poll tick.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("controller poller starting", "interval", PollInterval)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	defer p.backend.Close()

	var ticks uint64
	for {
		select {
		case <-ctx.Done():
			p.log.Info("controller poller stopped", "ticks", ticks)
			return ctx.Err()
		case <-ticker.C:
		}
		ticks++

		if err := p.backend.Refresh(); err != nil {
			p.log.Debug("backend refresh failed", "error", err)
			continue
		}
		p.tick(time.Now())
	}
}

// tick reads every device, emits events for changed state and services the
// rumble schedule.
func (p *Poller) tick(now time.Time) {
	devices := p.backend.Devices()
	for _, d := range devices {
		id := d.ID()
		if p.excluded[id] {
			continue
		}
		if IsRacingWheel(d.Name()) {
			p.log.Info("racing wheel excluded from gamepad handling", "name", d.Name(), "id", id)
			p.excluded[id] = true
			continue
		}
		if !d.Connected() {
			delete(p.last, id)
			continue
		}

		st := ReadState(d)
		if prev, seen := p.last[id]; seen && prev == st {
			continue
		}
		p.last[id] = st

		ev := protocol.Gamepad{
			ControllerID: id,
			ButtonFlags:  st.Buttons,
			LeftTrigger:  st.LeftTrigger,
			RightTrigger: st.RightTrigger,
			LeftStickX:   st.LeftStickX,
			LeftStickY:   st.LeftStickY,
			RightStickX:  st.RightStickX,
			RightStickY:  st.RightStickY,
			Flags:        flagConnected,
			TimestampUs:  p.now(),
		}
		select {
		case p.events <- ev:
		default:
			// Channel full; the complete state goes out next change anyway.
		}
	}

	p.applyRumble(devices, now)
}

// applyRumble expires finished effects and pushes queued ones to hardware.
// Critical sections are insert/remove only; SetRumble runs outside the lock.
func (p *Poller) applyRumble(devices []Device, now time.Time) {
	p.mu.Lock()
	for id, expiry := range p.expiries {
		// A zero expiry marks an indefinite effect; only a stop ends it.
		if !expiry.IsZero() && !now.Before(expiry) {
			delete(p.expiries, id)
			p.queued[id] = rumbleEffect{}
		}
	}
	var pending map[uint8]rumbleEffect
	if len(p.queued) > 0 {
		pending = p.queued
		p.queued = make(map[uint8]rumbleEffect)
		for id, eff := range pending {
			switch {
			case eff.isStop():
				delete(p.expiries, id)
			case eff.indefinite:
				p.expiries[id] = time.Time{}
			default:
				p.expiries[id] = now.Add(eff.duration)
			}
		}
	}
	p.mu.Unlock()

	for id, eff := range pending {
		d := deviceByID(devices, id)
		if d == nil {
			continue
		}
		if err := d.SetRumble(eff.leftMotor, eff.rightMotor); err != nil {
			p.log.Debug("rumble apply failed", "id", id, "error", err)
		}
	}
}

func deviceByID(devices []Device, id uint8) Device {
	for _, d := range devices {
		if d.ID() == id {
			return d
		}
	}
	return nil
}
