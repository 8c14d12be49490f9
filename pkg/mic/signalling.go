package mic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

// ErrProducerNotFound is returned when the signalling server does not list
// the robot's media producer.
var ErrProducerNotFound = errors.New("mic: producer not found")

const handshakeTimeout = 10 * time.Second

// message is the GStreamer webrtcsink signalling envelope.
type message struct {
	Type      string      `json:"type"`
	PeerID    string      `json:"peerId,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Producers []producer  `json:"producers,omitempty"`
	SDP       *sdpPayload `json:"sdp,omitempty"`
	ICE       *icePayload `json:"ice,omitempty"`
}

type producer struct {
	ID   string            `json:"id"`
	Meta map[string]string `json:"meta"`
}

type sdpPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type icePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

// signaller wraps the signalling websocket. Writes are serialized; reads
// happen on one goroutine at a time.
type signaller struct {
	ws *websocket.Conn
	mu sync.Mutex

	sessionMu sync.RWMutex
	sessionID string
}

func dial(ctx context.Context, url string) (*signaller, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("signalling connect failed: %w", err)
	}
	return &signaller{ws: ws}, nil
}

func (s *signaller) write(m message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.WriteJSON(m)
}

func (s *signaller) read(timeout time.Duration) (message, error) {
	var m message
	if timeout > 0 {
		s.ws.SetReadDeadline(time.Now().Add(timeout))
		defer s.ws.SetReadDeadline(time.Time{})
	}
	_, data, err := s.ws.ReadMessage()
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode signalling message: %w", err)
	}
	return m, nil
}

// handshake waits for the welcome and looks up the named producer.
func (s *signaller) handshake(name string) (peerID, producerID string, err error) {
	welcome, err := s.read(handshakeTimeout)
	if err != nil {
		return "", "", fmt.Errorf("welcome failed: %w", err)
	}
	if welcome.Type != "welcome" {
		return "", "", fmt.Errorf("expected welcome, got %s", welcome.Type)
	}

	if err := s.write(message{Type: "list"}); err != nil {
		return "", "", err
	}
	list, err := s.read(handshakeTimeout)
	if err != nil {
		return "", "", fmt.Errorf("list producers failed: %w", err)
	}
	for _, p := range list.Producers {
		if p.Meta["name"] == name {
			return welcome.PeerID, p.ID, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q not in %d producers", ErrProducerNotFound, name, len(list.Producers))
}

func (s *signaller) startSession(producerID string) error {
	return s.write(message{Type: "startSession", PeerID: producerID})
}

func (s *signaller) session() string {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	return s.sessionID
}

func (s *signaller) setSession(id string) {
	s.sessionMu.Lock()
	s.sessionID = id
	s.sessionMu.Unlock()
}

func (s *signaller) sendSDP(desc webrtc.SessionDescription) error {
	return s.write(message{
		Type:      "peer",
		SessionID: s.session(),
		SDP:       &sdpPayload{Type: desc.Type.String(), SDP: desc.SDP},
	})
}

func (s *signaller) sendICE(c webrtc.ICECandidateInit) error {
	id := s.session()
	if id == "" {
		return nil
	}
	return s.write(message{
		Type:      "peer",
		SessionID: id,
		ICE:       &icePayload{Candidate: c.Candidate, SDPMid: c.SDPMid, SDPMLineIndex: c.SDPMLineIndex},
	})
}

func (s *signaller) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.ws.Close()
}
