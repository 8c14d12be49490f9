package robot

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

// mockMover records all commands for testing.
type mockMover struct {
	mu        sync.Mutex
	headCalls []Offset
	antCalls  [][2]float64
	status    string
	statusErr error
	failAfter int
}

func (m *mockMover) SetHeadPose(_ context.Context, pose Offset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headCalls = append(m.headCalls, pose)
	if m.failAfter > 0 && len(m.headCalls) >= m.failAfter {
		return errors.New("daemon gone")
	}
	return nil
}

func (m *mockMover) SetAntennas(_ context.Context, left, right float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.antCalls = append(m.antCalls, [2]float64{left, right})
	return nil
}

func (m *mockMover) GetDaemonStatus(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.statusErr
}

func (m *mockMover) SetVolume(context.Context, int) error { return nil }

type mockMic struct {
	starts, stops int
	startErr      error
	pending       []float32
}

func (m *mockMic) Start(context.Context) error {
	m.starts++
	return m.startErr
}

func (m *mockMic) Stop(context.Context) error {
	m.stops++
	return nil
}

func (m *mockMic) Sample(context.Context) ([]float32, error) {
	out := m.pending
	m.pending = nil
	return out, nil
}

func TestOffsetClamp(t *testing.T) {
	o := Offset{Roll: 1, Pitch: -1, Yaw: 0.1}.Clamp()
	if !floatEquals(o.Roll, MaxHeadRoll) || !floatEquals(o.Pitch, -MaxHeadPitch) || !floatEquals(o.Yaw, 0.1) {
		t.Errorf("Clamp() = %+v", o)
	}

	sum := Offset{Roll: 0.1}.Add(Offset{Roll: 0.2, Yaw: 0.3})
	if !floatEquals(sum.Roll, 0.3) || !floatEquals(sum.Yaw, 0.3) {
		t.Errorf("Add() = %+v", sum)
	}
}

func TestNod(t *testing.T) {
	m := &mockMover{}
	if err := Nod(context.Background(), m, 2, 0); err != nil {
		t.Fatalf("Nod() error = %v", err)
	}

	// 2 dips, 2 returns, final neutral
	if len(m.headCalls) != 5 {
		t.Fatalf("head calls = %d, want 5", len(m.headCalls))
	}
	if !floatEquals(m.headCalls[0].Pitch, NodPitch) {
		t.Errorf("first pitch = %v, want %v", m.headCalls[0].Pitch, NodPitch)
	}
	if last := m.headCalls[len(m.headCalls)-1]; last != (Offset{}) {
		t.Errorf("final pose = %+v, want neutral", last)
	}
}

func TestNodZeroTimes(t *testing.T) {
	m := &mockMover{}
	if err := Nod(context.Background(), m, 0, 0); err != nil {
		t.Fatal(err)
	}
	if len(m.headCalls) != 0 {
		t.Errorf("head calls = %d, want 0", len(m.headCalls))
	}
}

func TestNodReturnsToNeutralOnError(t *testing.T) {
	m := &mockMover{failAfter: 2}
	if err := Nod(context.Background(), m, 1, 0); err == nil {
		t.Fatal("expected error")
	}
	if last := m.headCalls[len(m.headCalls)-1]; last != (Offset{}) {
		t.Errorf("final pose = %+v, want neutral", last)
	}
}

func TestWiggleAntennas(t *testing.T) {
	m := &mockMover{}
	if err := WiggleAntennas(context.Background(), m, 2, 20, 0); err != nil {
		t.Fatalf("WiggleAntennas() error = %v", err)
	}
	if len(m.antCalls) != 5 {
		t.Fatalf("antenna calls = %d, want 5", len(m.antCalls))
	}

	rad := 20 * math.Pi / 180
	if !floatEquals(m.antCalls[0][0], rad) || !floatEquals(m.antCalls[0][1], -rad) {
		t.Errorf("first swing = %v", m.antCalls[0])
	}
	if m.antCalls[4] != [2]float64{0, 0} {
		t.Errorf("final antennas = %v, want centred", m.antCalls[4])
	}
}

func TestWiggleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &mockMover{}
	if err := WiggleAntennas(ctx, m, 3, 20, GestureStep); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestHTTPController(t *testing.T) {
	var mu sync.Mutex
	var moves []map[string]any
	var volume map[string]int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case "/api/daemon/status":
			w.Write([]byte(`{"state":"running"}`))
		case "/api/move/set_target":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			moves = append(moves, body)
		case "/api/volume/set":
			json.NewDecoder(r.Body).Decode(&volume)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctrl := NewHTTPController(srv.URL)
	ctx := context.Background()

	state, err := ctrl.GetDaemonStatus(ctx)
	if err != nil || state != "running" {
		t.Fatalf("GetDaemonStatus() = %q, %v", state, err)
	}

	if err := ctrl.SetHeadPose(ctx, Offset{Pitch: 2}); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.SetAntennas(ctx, 0.1, -0.1); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.SetVolume(ctx, 150); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(moves) != 2 {
		t.Fatalf("moves = %d, want 2", len(moves))
	}
	head := moves[0]["target_head_pose"].(map[string]any)
	if !floatEquals(head["pitch"].(float64), MaxHeadPitch) {
		t.Errorf("pitch = %v, want clamped %v", head["pitch"], MaxHeadPitch)
	}
	if moves[0]["target_antennas"] != nil {
		t.Errorf("head move should leave antennas nil, got %v", moves[0]["target_antennas"])
	}
	if moves[1]["target_head_pose"] != nil {
		t.Errorf("antenna move should leave head nil, got %v", moves[1]["target_head_pose"])
	}
	if volume["volume"] != 100 {
		t.Errorf("volume = %d, want 100", volume["volume"])
	}
}

func TestHTTPControllerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctrl := NewHTTPController(srv.URL)
	if _, err := ctrl.GetDaemonStatus(context.Background()); err == nil {
		t.Error("expected error from GetDaemonStatus")
	}
	if err := ctrl.SetAntennas(context.Background(), 0, 0); err == nil {
		t.Error("expected error from SetAntennas")
	}
}

func TestReachyConnected(t *testing.T) {
	m := &mockMover{status: "running"}
	r := NewReachy(m, nil, nil)

	if r.Connected() {
		t.Error("Connected() before probe should be false")
	}
	if !r.Refresh(context.Background()) || !r.Connected() {
		t.Error("expected connected after successful probe")
	}

	m.mu.Lock()
	m.statusErr = errors.New("unreachable")
	m.mu.Unlock()
	if r.Refresh(context.Background()) || r.Connected() {
		t.Error("expected disconnected after failed probe")
	}
}

func TestReachyRecording(t *testing.T) {
	mic := &mockMic{pending: []float32{0.1, 0.2}}
	r := NewReachy(&mockMover{}, mic, nil)
	ctx := context.Background()

	if s, err := r.AudioSample(ctx); s != nil || err != nil {
		t.Errorf("AudioSample() before start = %v, %v", s, err)
	}

	if err := r.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	if mic.starts != 1 {
		t.Errorf("mic starts = %d, want 1", mic.starts)
	}

	s, err := r.AudioSample(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := s.([]float32); !ok || len(got) != 2 {
		t.Errorf("AudioSample() = %#v", s)
	}
	if s, _ := r.AudioSample(ctx); s != nil {
		t.Errorf("second AudioSample() = %#v, want nil", s)
	}

	r.StopRecording(ctx)
	r.StopRecording(ctx)
	if mic.stops != 1 {
		t.Errorf("mic stops = %d, want 1", mic.stops)
	}
}

func TestReachyNoMicrophone(t *testing.T) {
	r := NewReachy(&mockMover{}, nil, nil)
	if err := r.StartRecording(context.Background()); !errors.Is(err, ErrNoMicrophone) {
		t.Errorf("StartRecording() = %v, want ErrNoMicrophone", err)
	}
	if err := r.StopRecording(context.Background()); err != nil {
		t.Errorf("StopRecording() = %v", err)
	}
}

func TestReachyStartFailureResets(t *testing.T) {
	mic := &mockMic{startErr: errors.New("no signalling")}
	r := NewReachy(&mockMover{}, mic, nil)
	if err := r.StartRecording(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	mic.startErr = nil
	if err := r.StartRecording(context.Background()); err != nil {
		t.Fatal(err)
	}
	if mic.starts != 2 {
		t.Errorf("mic starts = %d, want 2", mic.starts)
	}
}
