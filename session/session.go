// Package session wires a full streaming session together: signaling,
// WebRTC transport, the decode engine feeding the frame slot, and the input
// pipeline from controller polling to encoded data-channel bytes.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"
	"golang.org/x/sync/errgroup"

	"github.com/zortos293/OpenNOW-sub000/config"
	"github.com/zortos293/OpenNOW-sub000/decode"
	"github.com/zortos293/OpenNOW-sub000/input"
	"github.com/zortos293/OpenNOW-sub000/media"
	"github.com/zortos293/OpenNOW-sub000/protocol"
	"github.com/zortos293/OpenNOW-sub000/signaling"
	srtsource "github.com/zortos293/OpenNOW-sub000/source/srt"
	"github.com/zortos293/OpenNOW-sub000/transport"
)

// heartbeatInterval keeps the input channel alive between real events.
const heartbeatInterval = time.Second

// gamepadQueueDepth buffers encoded controller events between the 1 kHz
// poller and the data channel writer.
const gamepadQueueDepth = 64

// Session is one end-to-end streaming session.
type Session struct {
	log *slog.Logger
	cfg config.Config

	slot    *media.FrameSlot
	engine  *decode.Engine
	encoder *protocol.Encoder

	transport *transport.Session
	signaling *signaling.Client
	api       *signaling.SessionAPI
	sessionID string

	poller   *input.Poller
	gamepads chan protocol.Gamepad
}

// New builds the session from configuration. The decode backend is probed
// here; failures surface before any network activity.
func New(cfg config.Config) (*Session, error) {
	slot := media.NewFrameSlot()
	engine, err := decode.NewEngine(cfg.Codec, cfg.Preference, slot, nil)
	if err != nil {
		return nil, fmt.Errorf("decode engine: %w", err)
	}

	s := &Session{
		log:      slog.With("component", "session"),
		cfg:      cfg,
		slot:     slot,
		engine:   engine,
		encoder:  protocol.NewEncoder(),
		gamepads: make(chan protocol.Gamepad, gamepadQueueDepth),
	}
	if backend, err := input.NewEvdevBackend(nil); err != nil {
		s.log.Warn("controller backend unavailable", "error", err)
	} else {
		s.poller = input.NewPoller(backend, s.gamepads, s.encoder.TimestampUs, nil)
	}

	sel := engine.Selection()
	s.log.Info("session ready",
		"codec", cfg.Codec.String(),
		"backend", sel.Backend.String(),
		"hardware", sel.HardwareAccelerated)
	return s, nil
}

// Slot exposes the frame mailbox for the render side.
func (s *Session) Slot() *media.FrameSlot { return s.slot }

// Engine exposes decode statistics for overlays.
func (s *Session) Engine() *decode.Engine { return s.engine }

// Run drives the session until ctx is cancelled or a component fails. With
// a local SRT source configured, signaling and WebRTC are skipped entirely.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.engine.Run(ctx) })
	if s.poller != nil {
		g.Go(func() error { return s.poller.Run(ctx) })
	}

	if s.cfg.SRTAddr != "" {
		s.log.Info("using local SRT source", "addr", s.cfg.SRTAddr)
		src := srtsource.NewServer(s.cfg.SRTAddr, func(au []byte, timestampUs uint64) {
			s.engine.DecodeAsync(au, timestampUs)
		})
		g.Go(func() error { return src.Start(ctx) })
		err := g.Wait()
		s.engine.Stop()
		s.slot.Close()
		return err
	}

	if err := s.connect(ctx); err != nil {
		// Unwind the already-running loops before reporting the failure.
		cancel()
		g.Wait()
		s.teardown()
		return err
	}

	g.Go(func() error { return s.signaling.Run(ctx) })
	g.Go(func() error { return s.inputLoop(ctx) })
	g.Go(func() error { return s.keyframeLoop(ctx) })

	err := g.Wait()
	s.teardown()
	return err
}

// connect performs session setup: the REST API (unless a direct signaling
// URL is configured), then the offer/answer exchange.
func (s *Session) connect(ctx context.Context) error {
	signalingURL := s.cfg.SignalingURL
	stun := s.cfg.STUNServers

	if signalingURL == "" {
		s.api = signaling.NewSessionAPI(s.cfg.ServerURL, s.cfg.UseHTTP3)
		resp, err := s.api.Create(ctx, signaling.SessionRequest{
			AppID:     s.cfg.AppID,
			Width:     s.cfg.Width,
			Height:    s.cfg.Height,
			FPS:       s.cfg.FPS,
			Codec:     s.cfg.Codec.String(),
			EnableHDR: s.cfg.DisplayHDR,
		})
		if err != nil {
			return err
		}
		s.sessionID = resp.SessionID
		signalingURL = resp.SignalingURL
		if len(resp.ICEServers) > 0 {
			stun = resp.ICEServers
		}
	}

	ts, err := transport.NewSession(transport.Config{
		STUNServers:        stun,
		MaxProtocolVersion: s.cfg.MaxProtocolVersion,
	}, transport.Handlers{
		OnAccessUnit: func(au transport.AccessUnit) {
			s.engine.DecodeAsync(au.Data, au.TimestampUs)
		},
		OnOutputEvent:     s.handleOutputEvent,
		OnProtocolVersion: s.encoder.SetProtocolVersion,
		OnLocalCandidate: func(c *webrtc.ICECandidateInit) {
			if c == nil || s.signaling == nil {
				return
			}
			if err := s.signaling.SendCandidate(*c); err != nil {
				s.log.Warn("send candidate", "error", err)
			}
		},
	})
	if err != nil {
		return err
	}
	s.transport = ts

	sig, err := signaling.Dial(ctx, signalingURL, signaling.Handlers{
		OnAnswer: func(sdp string) {
			if err := ts.HandleAnswer(sdp); err != nil {
				s.log.Error("apply answer", "error", err)
			}
		},
		OnRemoteCandidate: func(c webrtc.ICECandidateInit) {
			if err := ts.AddRemoteCandidate(c); err != nil {
				s.log.Warn("remote candidate", "error", err)
			}
		},
	})
	if err != nil {
		ts.Close()
		return err
	}
	s.signaling = sig

	offer, err := ts.CreateOffer()
	if err != nil {
		return err
	}
	return sig.SendOffer(offer)
}

// inputLoop forwards controller events and heartbeats to the data channel.
func (s *Session) inputLoop(ctx context.Context) error {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pad := <-s.gamepads:
			if err := s.transport.SendInput(s.encoder.Encode(pad)); err != nil {
				s.log.Warn("send gamepad", "error", err)
			}
		case <-heartbeat.C:
			if err := s.transport.SendInput(s.encoder.Encode(protocol.Heartbeat{})); err != nil {
				s.log.Warn("send heartbeat", "error", err)
			}
		}
	}
}

// keyframeLoop turns decoder recovery signals into PLI feedback.
func (s *Session) keyframeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.engine.NeedsKeyframe():
			if err := s.transport.RequestKeyframe(); err != nil {
				s.log.Debug("keyframe request", "error", err)
			}
		}
	}
}

// handleOutputEvent routes rumble and force feedback to the poller.
func (s *Session) handleOutputEvent(ev protocol.OutputEvent) {
	if s.poller == nil {
		return
	}
	switch e := ev.(type) {
	case *protocol.Rumble:
		if e.LeftMotor == 0 && e.RightMotor == 0 {
			s.poller.StopRumble(e.ControllerID)
			return
		}
		s.poller.QueueRumble(e.ControllerID, e.LeftMotor, e.RightMotor, e.DurationMs)
	case *protocol.ForceFeedback:
		// Wheel force feedback maps onto the rumble path as a fixed split
		// until dedicated effect upload lands in the evdev backend.
		magnitude := ffMagnitudeToRumble(e.Magnitude)
		s.poller.QueueRumble(e.WheelID, magnitude, magnitude, e.DurationMs)
	}
}

// SendInput transmits one UI-originated event (keyboard, mouse).
func (s *Session) SendInput(ev protocol.InputEvent) error {
	if s.transport == nil {
		return nil
	}
	return s.transport.SendInput(s.encoder.Encode(ev))
}

// PasteText expands clipboard text into remote keystrokes.
func (s *Session) PasteText(text string) error {
	if s.transport == nil {
		return nil
	}
	for _, b := range protocol.EncodeClipboardPaste(s.encoder, text) {
		if err := s.transport.SendInput(b); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) teardown() {
	if s.poller != nil {
		s.poller.StopAllRumble()
	}
	s.engine.Stop()
	s.slot.Close()
	if s.transport != nil {
		s.transport.Close()
	}
	if s.signaling != nil {
		s.signaling.Close()
	}
	if s.api != nil && s.sessionID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.api.Stop(ctx, s.sessionID); err != nil {
			s.log.Warn("stop session", "error", err)
		}
		s.api.Close()
	}
}

// ffMagnitudeToRumble scales a signed effect magnitude to one motor byte.
// Negation runs in int so the most negative value does not wrap to zero.
func ffMagnitudeToRumble(v int16) uint8 {
	m := int(v)
	if m < 0 {
		m = -m
	}
	return uint8(min(m>>7, 255))
}
