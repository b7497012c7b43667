package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/zortos293/OpenNOW-sub000/decode"
	"github.com/zortos293/OpenNOW-sub000/protocol"
)

// pliMinInterval throttles picture loss indications so a stalled decoder
// does not flood the sender between keyframes.
const pliMinInterval = 250 * time.Millisecond

const inputChannelLabel = "input"

// handshakeTag opens the data-channel version negotiation message.
const handshakeTag = 0x0e

// Handlers are the session's upward callbacks. All of them are invoked from
// transport goroutines; implementations must not block.
type Handlers struct {
	// OnAccessUnit delivers one reassembled coded picture.
	OnAccessUnit func(au AccessUnit)

	// OnOutputEvent delivers a decoded rumble or force-feedback event.
	OnOutputEvent func(ev protocol.OutputEvent)

	// OnLocalCandidate delivers trickle ICE candidates for the signaling
	// channel. A nil candidate marks the end of gathering.
	OnLocalCandidate func(c *webrtc.ICECandidateInit)

	// OnProtocolVersion fires once the input channel handshake settles the
	// wire version.
	OnProtocolVersion func(version uint8)

	// OnConnectionChange reports peer connection state transitions.
	OnConnectionChange func(state webrtc.PeerConnectionState)
}

// Config carries session construction parameters.
type Config struct {
	// STUNServers are stun: URLs for ICE. Empty means host candidates only.
	STUNServers []string

	// MaxProtocolVersion caps the input protocol version this client will
	// accept during the handshake.
	MaxProtocolVersion uint8
}

// Session is one WebRTC media and input session. The remote peer streams
// video on a recvonly track and exchanges input bytes over a data channel.
type Session struct {
	log      *slog.Logger
	pc       *webrtc.PeerConnection
	input    *webrtc.DataChannel
	handlers Handlers
	cfg      Config

	outDecoder *protocol.Decoder
	videoSSRC  atomic.Uint32
	inputOpen  atomic.Bool
	lastPLI    atomic.Int64
}

// NewSession builds the peer connection, registers the recvonly video
// transceiver and opens the input data channel.
func NewSession(cfg Config, handlers Handlers) (*Session, error) {
	var ice []webrtc.ICEServer
	if len(cfg.STUNServers) > 0 {
		ice = append(ice, webrtc.ICEServer{URLs: cfg.STUNServers})
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: ice})
	if err != nil {
		return nil, fmt.Errorf("peer connection: %w", err)
	}

	s := &Session{
		log:        slog.With("component", "transport"),
		pc:         pc,
		handlers:   handlers,
		cfg:        cfg,
		outDecoder: protocol.NewDecoder(),
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("video transceiver: %w", err)
	}

	ordered := true
	dc, err := pc.CreateDataChannel(inputChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("input channel: %w", err)
	}
	s.input = dc
	dc.OnOpen(func() {
		s.inputOpen.Store(true)
		s.log.Info("input channel open")
	})
	dc.OnClose(func() { s.inputOpen.Store(false) })
	dc.OnMessage(s.onInputMessage)

	pc.OnTrack(s.onTrack)
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if s.handlers.OnLocalCandidate == nil {
			return
		}
		if c == nil {
			s.handlers.OnLocalCandidate(nil)
			return
		}
		init := c.ToJSON()
		s.handlers.OnLocalCandidate(&init)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Info("connection state", "state", state.String())
		if s.handlers.OnConnectionChange != nil {
			s.handlers.OnConnectionChange(state)
		}
	})

	return s, nil
}

// CreateOffer produces the local SDP offer. Candidates trickle through
// OnLocalCandidate as gathering proceeds.
func (s *Session) CreateOffer() (string, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return offer.SDP, nil
}

// HandleAnswer applies the remote SDP answer.
func (s *Session) HandleAnswer(sdp string) error {
	return s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
}

// AddRemoteCandidate applies one trickled remote ICE candidate.
func (s *Session) AddRemoteCandidate(c webrtc.ICECandidateInit) error {
	return s.pc.AddICECandidate(c)
}

// SendInput transmits one encoded input event. Events sent before the
// channel opens are dropped; the remote resynchronizes from absolute state.
func (s *Session) SendInput(b []byte) error {
	if !s.inputOpen.Load() {
		return nil
	}
	return s.input.Send(b)
}

// RequestKeyframe sends a PLI for the video track, rate-limited so decoder
// retry loops cannot flood the sender.
func (s *Session) RequestKeyframe() error {
	ssrc := s.videoSSRC.Load()
	if ssrc == 0 {
		return errors.New("no video track yet")
	}
	now := time.Now().UnixNano()
	last := s.lastPLI.Load()
	if now-last < int64(pliMinInterval) || !s.lastPLI.CompareAndSwap(last, now) {
		return nil
	}
	s.log.Debug("sending picture loss indication", "ssrc", ssrc)
	return s.pc.WriteRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: ssrc},
	})
}

// Close tears down the peer connection.
func (s *Session) Close() error {
	return s.pc.Close()
}

func (s *Session) onTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	if track.Kind() != webrtc.RTPCodecTypeVideo {
		return
	}
	codec, err := codecFromMime(track.Codec().MimeType)
	if err != nil {
		s.log.Error("unsupported video track", "mime", track.Codec().MimeType)
		return
	}
	s.videoSSRC.Store(uint32(track.SSRC()))
	s.log.Info("video track started", "codec", codec.String(), "ssrc", track.SSRC())
	go s.readLoop(track, codec)
}

func (s *Session) readLoop(track *webrtc.TrackRemote, codec decode.Codec) {
	dep, err := NewDepacketizer(codec)
	if err != nil {
		s.log.Error("depacketizer", "error", err)
		return
	}
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			s.log.Info("video track ended", "error", err)
			return
		}
		au, err := dep.Push(pkt)
		if err != nil {
			s.log.Warn("depacketize", "error", err)
			continue
		}
		if au != nil && s.handlers.OnAccessUnit != nil {
			s.handlers.OnAccessUnit(*au)
		}
	}
}

// onInputMessage handles server-to-client bytes on the input channel. Output
// events decode first: the force-feedback type tag is 14, which puts 0x0e in
// the lead byte exactly like the handshake. The handshake claims only what
// no output event does, and only at its fixed 4-byte length.
func (s *Session) onInputMessage(msg webrtc.DataChannelMessage) {
	data := msg.Data
	if ev := s.outDecoder.Decode(data); ev != nil {
		if s.handlers.OnOutputEvent != nil {
			s.handlers.OnOutputEvent(ev)
		}
		return
	}
	if len(data) == 4 && data[0] == handshakeTag {
		s.handleHandshake(data)
	}
}

func (s *Session) handleHandshake(data []byte) {
	offered := data[1]
	version := offered
	if max := s.cfg.MaxProtocolVersion; max != 0 && version > max {
		version = max
	}
	s.outDecoder.SetProtocolVersion(version)
	s.log.Info("input protocol negotiated", "offered", offered, "using", version)

	if err := s.input.Send(protocol.EncodeHandshakeResponse(version, data[2], data[3])); err != nil {
		s.log.Error("handshake response", "error", err)
		return
	}
	if s.handlers.OnProtocolVersion != nil {
		s.handlers.OnProtocolVersion(version)
	}
}

func codecFromMime(mime string) (decode.Codec, error) {
	switch {
	case strings.EqualFold(mime, webrtc.MimeTypeH264):
		return decode.CodecH264, nil
	case strings.EqualFold(mime, webrtc.MimeTypeH265):
		return decode.CodecHEVC, nil
	case strings.EqualFold(mime, webrtc.MimeTypeAV1):
		return decode.CodecAV1, nil
	default:
		return 0, fmt.Errorf("unsupported mime type %q", mime)
	}
}
