package session

import (
	"testing"

	"github.com/zortos293/OpenNOW-sub000/input"
	"github.com/zortos293/OpenNOW-sub000/protocol"
)

type fakeBackend struct{}

func (fakeBackend) Refresh() error          { return nil }
func (fakeBackend) Devices() []input.Device { return nil }
func (fakeBackend) Close()                  {}

func newTestSession() *Session {
	s := &Session{
		encoder:  protocol.NewEncoder(),
		gamepads: make(chan protocol.Gamepad, 4),
	}
	s.poller = input.NewPoller(fakeBackend{}, s.gamepads, s.encoder.TimestampUs, nil)
	return s
}

func TestOutputEventRumbleRouting(t *testing.T) {
	t.Parallel()

	s := newTestSession()

	// Effects queue for the next poll tick; nothing is active yet and the
	// stop-all sweep on teardown must remain a no-op.
	s.handleOutputEvent(&protocol.Rumble{ControllerID: 0, LeftMotor: 100, RightMotor: 50, DurationMs: 200})
	if s.poller.RumbleActive() {
		t.Error("queued effect reported active before a poll tick")
	}
	s.poller.StopAllRumble()
}

func TestOutputEventStopRumble(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	// A zero-magnitude rumble is the stop command and must not schedule an
	// expiry.
	s.handleOutputEvent(&protocol.Rumble{ControllerID: 1})
	if s.poller.RumbleActive() {
		t.Error("stop command left an active effect")
	}
}

func TestOutputEventForceFeedbackMapsToRumble(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	s.handleOutputEvent(&protocol.ForceFeedback{
		WheelID:    2,
		EffectType: protocol.EffectConstant,
		Magnitude:  16384,
		DurationMs: 100,
	})
	// Routed through the same queue as rumble; nothing to observe beyond
	// not panicking with no devices attached.
}

func TestOutputEventsIgnoredWithoutPoller(t *testing.T) {
	t.Parallel()

	s := &Session{encoder: protocol.NewEncoder()}
	s.handleOutputEvent(&protocol.Rumble{LeftMotor: 10})
}

func TestSendInputWithoutTransport(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	if err := s.SendInput(protocol.Heartbeat{}); err != nil {
		t.Errorf("SendInput before connect = %v, want nil", err)
	}
	if err := s.PasteText("hello"); err != nil {
		t.Errorf("PasteText before connect = %v, want nil", err)
	}
}

func TestForceFeedbackMagnitudeScaling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		magnitude int16
		want      uint8
	}{
		{0, 0},
		{16384, 128},
		{-16384, 128},
		{32767, 255},
		{-32768, 255}, // full negative deflection must not wrap to zero
	}
	for _, tt := range tests {
		if got := ffMagnitudeToRumble(tt.magnitude); got != tt.want {
			t.Errorf("ffMagnitudeToRumble(%d) = %d, want %d", tt.magnitude, got, tt.want)
		}
	}
}
