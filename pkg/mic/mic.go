// Package mic captures the Reachy Mini microphone over WebRTC.
//
// The robot publishes its camera and microphone through a GStreamer
// webrtcsink. Microphone negotiates a receive-only audio session with it,
// decodes the Opus track at 48 kHz and keeps the most recent audio,
// resampled to 16 kHz, in a bounded buffer that Sample drains.
package mic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/reachy-voice/pkg/audioio"
)

// Audio constants.
const (
	OpusRate   = 48000
	OutputRate = 16000

	// maxFrameSamples holds 120 ms at 48 kHz, the largest Opus frame.
	maxFrameSamples = 5760

	// DefaultBufferSamples keeps two seconds of 16 kHz audio.
	DefaultBufferSamples = 2 * OutputRate

	DefaultProducer = "reachymini"
)

// ErrClosed is returned when sampling a microphone that is not running.
var ErrClosed = errors.New("mic: not running")

// Decoder decodes one Opus packet into mono PCM. *opus.Decoder satisfies it.
type Decoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// Config configures a Microphone.
type Config struct {
	// SignallingURL is the webrtcsink signalling endpoint, e.g. ws://reachy-mini.local:8443.
	SignallingURL string
	Producer      string
	BufferSamples int
}

// Stats are counters for the current session.
type Stats struct {
	Packets      int64
	Lost         int64
	DecodeErrors int64
	Dropped      int64
}

// Microphone is a WebRTC audio receiver for the robot microphone.
type Microphone struct {
	cfg    Config
	logger *slog.Logger

	newDecoder func() (Decoder, error)

	mu      sync.Mutex
	sig     *signaller
	pc      *webrtc.PeerConnection
	running bool
	wg      sync.WaitGroup

	buf *ring

	packets      atomic.Int64
	lost         atomic.Int64
	decodeErrors atomic.Int64
}

// New creates a microphone. Start must be called before Sample returns audio.
func New(cfg Config, logger *slog.Logger) *Microphone {
	if cfg.Producer == "" {
		cfg.Producer = DefaultProducer
	}
	if cfg.BufferSamples <= 0 {
		cfg.BufferSamples = DefaultBufferSamples
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Microphone{
		cfg:    cfg,
		logger: logger.With("component", "mic"),
		newDecoder: func() (Decoder, error) {
			return opus.NewDecoder(OpusRate, 1)
		},
		buf: newRing(cfg.BufferSamples),
	}
}

// Start connects to the signalling server and requests an audio session.
// It returns once the session is requested; audio arrives asynchronously.
func (m *Microphone) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	sig, err := dial(ctx, m.cfg.SignallingURL)
	if err != nil {
		return err
	}
	peerID, producerID, err := sig.handshake(m.cfg.Producer)
	if err != nil {
		sig.close()
		return err
	}
	m.logger.Debug("signalling ready", "peer_id", peerID, "producer_id", producerID)

	pc, err := m.newPeerConnection(sig)
	if err != nil {
		sig.close()
		return fmt.Errorf("peer connection failed: %w", err)
	}

	if err := sig.startSession(producerID); err != nil {
		pc.Close()
		sig.close()
		return fmt.Errorf("start session failed: %w", err)
	}

	m.sig, m.pc, m.running = sig, pc, true
	m.buf.reset()
	m.packets.Store(0)
	m.decodeErrors.Store(0)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.signallingLoop(sig, pc)
	}()

	m.logger.Info("microphone session requested", "url", m.cfg.SignallingURL)
	return nil
}

// Stop closes the session and waits for its goroutines.
func (m *Microphone) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	sig, pc := m.sig, m.pc
	m.sig, m.pc = nil, nil
	m.mu.Unlock()

	var errs []error
	if err := pc.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := sig.close(); err != nil {
		errs = append(errs, err)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	m.logger.Info("microphone stopped", "packets", m.packets.Load(), "decode_errors", m.decodeErrors.Load())
	return errors.Join(errs...)
}

// Sample drains the buffered 16 kHz audio as floats in [-1, 1].
func (m *Microphone) Sample(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return nil, ErrClosed
	}

	pcm := m.buf.drain()
	if len(pcm) == 0 {
		return nil, nil
	}
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768
	}
	return out, nil
}

// Stats returns counters for the current session.
func (m *Microphone) Stats() Stats {
	return Stats{
		Packets:      m.packets.Load(),
		Lost:         m.lost.Load(),
		DecodeErrors: m.decodeErrors.Load(),
		Dropped:      m.buf.droppedCount(),
	}
}

func (m *Microphone) newPeerConnection(sig *signaller) (*webrtc.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, err
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		m.logger.Info("track received", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		m.readTrack(track)
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if err := sig.sendICE(c.ToJSON()); err != nil {
			m.logger.Debug("send ice failed", "error", err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		m.logger.Debug("connection state", "state", state.String())
	})

	return pc, nil
}

func (m *Microphone) signallingLoop(sig *signaller, pc *webrtc.PeerConnection) {
	for {
		msg, err := sig.read(0)
		if err != nil {
			m.mu.Lock()
			running := m.running
			m.mu.Unlock()
			if running {
				m.logger.Warn("signalling closed", "error", err)
			}
			return
		}

		switch msg.Type {
		case "sessionStarted":
			sig.setSession(msg.SessionID)
		case "peer":
			if err := m.handlePeer(sig, pc, msg); err != nil {
				m.logger.Warn("peer message failed", "error", err)
			}
		case "endSession":
			m.logger.Info("session ended by robot")
			return
		case "error":
			m.logger.Warn("signalling error message", "details", msg)
		}
	}
}

func (m *Microphone) handlePeer(sig *signaller, pc *webrtc.PeerConnection, msg message) error {
	if msg.SDP != nil && msg.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP.SDP}
		if err := pc.SetRemoteDescription(offer); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		answer, err := pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}
		if err := sig.sendSDP(answer); err != nil {
			return fmt.Errorf("send answer: %w", err)
		}
	}

	if msg.ICE != nil {
		if err := pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     msg.ICE.Candidate,
			SDPMid:        msg.ICE.SDPMid,
			SDPMLineIndex: msg.ICE.SDPMLineIndex,
		}); err != nil {
			return fmt.Errorf("add ice candidate: %w", err)
		}
	}
	return nil
}

func (m *Microphone) readTrack(track *webrtc.TrackRemote) {
	dec, err := m.newDecoder()
	if err != nil {
		m.logger.Error("opus decoder unavailable", "error", err)
		return
	}

	var (
		frame   = make([]int16, maxFrameSamples)
		lastSeq uint16
		started bool
	)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if started {
			m.lost.Add(int64(seqGap(lastSeq, pkt.SequenceNumber)))
		}
		lastSeq, started = pkt.SequenceNumber, true
		m.decodePacket(dec, pkt, frame)
	}
}

// seqGap counts the packets missing between two consecutive sequence
// numbers. Reordered or duplicate packets count as no loss.
func seqGap(prev, next uint16) int {
	d := next - prev
	if d == 0 || d > 1<<15 {
		return 0
	}
	return int(d) - 1
}

// decodePacket decodes one Opus packet and appends it, resampled, to the buffer.
func (m *Microphone) decodePacket(dec Decoder, pkt *rtp.Packet, frame []int16) {
	if len(pkt.Payload) == 0 {
		return
	}
	m.packets.Add(1)
	n, err := dec.Decode(pkt.Payload, frame)
	if err != nil {
		if m.decodeErrors.Add(1) <= 5 {
			m.logger.Warn("opus decode failed", "error", err, "seq", pkt.SequenceNumber, "payload_bytes", len(pkt.Payload))
		}
		return
	}
	m.buf.write(audioio.Resample(frame[:n], OpusRate, OutputRate))
}
