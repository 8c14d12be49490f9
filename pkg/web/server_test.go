package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/reachy-voice/pkg/events"
	"github.com/teslashibe/reachy-voice/pkg/executor"
	"github.com/teslashibe/reachy-voice/pkg/voice"
)

type fakeController struct {
	bus *events.Bus

	startErr  error
	cancelErr error

	mu       sync.Mutex
	running  bool
	executed []string
	useCC    []bool
}

func newFakeController() *fakeController {
	return &fakeController{bus: events.NewBus(nil)}
}

func (f *fakeController) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeController) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

func (f *fakeController) Status() voice.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := voice.Status{State: voice.StateStopped, IsRunning: f.running}
	if f.running {
		st.State = voice.StateRunning
	}
	st.Services.ClaudeCode = &executor.Info{Available: true}
	return st
}

func (f *fakeController) ExecuteManualCommand(_ context.Context, text string, useClaudeCode bool) voice.DispatchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, text)
	f.useCC = append(f.useCC, useClaudeCode)
	return voice.DispatchResult{Success: true, Output: "ok", Response: "Done."}
}

func (f *fakeController) CancelExecution() error { return f.cancelErr }

func (f *fakeController) Events() *events.Bus { return f.bus }

func doJSON(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestStartStop(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, Config{}, nil)

	code, body := doJSON(t, s, http.MethodPost, Prefix+"/start", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Voice control started", body["message"])

	code, body = doJSON(t, s, http.MethodGet, Prefix+"/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "running", body["state"])
	assert.Equal(t, true, body["is_running"])

	code, body = doJSON(t, s, http.MethodPost, Prefix+"/stop", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Voice control stopped", body["message"])
}

func TestStartFailure(t *testing.T) {
	ctrl := newFakeController()
	ctrl.startErr = voice.ErrSTTNotConfigured
	s := NewServer(ctrl, Config{}, nil)

	code, body := doJSON(t, s, http.MethodPost, Prefix+"/start", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, voice.ErrSTTNotConfigured.Error(), body["error"])
}

func TestExecute(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, Config{}, nil)

	code, body := doJSON(t, s, http.MethodPost, Prefix+"/execute", `{"command":"list files"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Done.", body["response"])

	_, _ = doJSON(t, s, http.MethodPost, Prefix+"/execute", `{"command":"tell me a joke","use_claude_code":false}`)

	assert.Equal(t, []string{"list files", "tell me a joke"}, ctrl.executed)
	assert.Equal(t, []bool{true, false}, ctrl.useCC)
}

func TestExecuteValidation(t *testing.T) {
	s := NewServer(newFakeController(), Config{}, nil)

	code, body := doJSON(t, s, http.MethodPost, Prefix+"/execute", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "command is required", body["error"])

	code, _ = doJSON(t, s, http.MethodPost, Prefix+"/execute", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCancel(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, Config{}, nil)

	code, body := doJSON(t, s, http.MethodPost, Prefix+"/cancel", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	ctrl.cancelErr = executor.ErrNotExecuting
	code, body = doJSON(t, s, http.MethodPost, Prefix+"/cancel", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, executor.ErrNotExecuting.Error(), body["error"])
}

func TestClaudeCodeStatus(t *testing.T) {
	s := NewServer(newFakeController(), Config{}, nil)

	code, body := doJSON(t, s, http.MethodGet, Prefix+"/claude-code/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["available"])
	assert.Equal(t, false, body["executing"])
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "voice_commands_total 3\n")
	})
	s := NewServer(newFakeController(), Config{Metrics: metrics}, nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(data), "voice_commands_total 3")
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := NewServer(newFakeController(), Config{}, nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, Prefix+"/ws", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func dialWS(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	url := "ws://" + ln.Addr().String() + Prefix + "/ws"
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, Config{}, nil)
	conn := dialWS(t, s)

	initial := readMessage(t, conn)
	assert.Equal(t, "status", initial["type"])
	assert.Nil(t, initial["timestamp"])
	assert.Equal(t, "stopped", initial["data"].(map[string]any)["state"])

	require.NoError(t, conn.WriteJSON(Request{Command: "start"}))
	msg := readMessage(t, conn)
	assert.Equal(t, typeCommandResult, msg["type"])
	assert.Equal(t, "start", msg["command"])
	assert.Equal(t, true, msg["data"].(map[string]any)["success"])

	require.NoError(t, conn.WriteJSON(Request{Command: "execute", Text: "run the tests"}))
	msg = readMessage(t, conn)
	assert.Equal(t, "execute", msg["command"])
	assert.Equal(t, "Done.", msg["data"].(map[string]any)["response"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	msg = readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "Invalid JSON", msg["data"].(map[string]any)["message"])

	require.NoError(t, conn.WriteJSON(Request{Command: "status"}))
	msg = readMessage(t, conn)
	assert.Equal(t, "status", msg["type"])
	assert.Equal(t, "running", msg["data"].(map[string]any)["state"])

	ctrl.bus.Publish(events.TypeTranscript, events.Data{"text": "hey claude", "is_final": false})
	msg = readMessage(t, conn)
	assert.Equal(t, "transcript", msg["type"])
	assert.Equal(t, "hey claude", msg["data"].(map[string]any)["text"])
	assert.NotNil(t, msg["timestamp"])
}

func TestWebSocketCancelFailure(t *testing.T) {
	ctrl := newFakeController()
	ctrl.cancelErr = errors.New("no command executing")
	s := NewServer(ctrl, Config{}, nil)
	conn := dialWS(t, s)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(Request{Command: "cancel"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "cancel", msg["command"])
	data := msg["data"].(map[string]any)
	assert.Equal(t, false, data["success"])
	assert.Equal(t, "no command executing", data["message"])
}

func TestWebSocketUnsubscribesOnClose(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, Config{}, nil)
	conn := dialWS(t, s)
	readMessage(t, conn)
	require.Equal(t, 1, ctrl.bus.Len())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	require.Eventually(t, func() bool {
		return ctrl.bus.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
