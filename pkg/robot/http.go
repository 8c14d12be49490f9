package robot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/teslashibe/reachy-voice/internal/httpc"
)

// DefaultHTTPTimeout bounds every daemon request so a stalled robot never
// blocks a caller.
const DefaultHTTPTimeout = 2 * time.Second

// HTTPController talks to the Reachy Mini daemon HTTP API.
type HTTPController struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPController creates a controller for the daemon at baseURL
// (e.g. http://reachy-mini.local:8000).
func NewHTTPController(baseURL string) *HTTPController {
	return &HTTPController{
		BaseURL: baseURL,
		Client:  httpc.NewClient(DefaultHTTPTimeout),
	}
}

// SetHeadPose moves the head, leaving antennas and body untouched.
func (r *HTTPController) SetHeadPose(ctx context.Context, pose Offset) error {
	pose = pose.Clamp()
	return r.postMove(ctx, moveRequest{
		Head:     &headPose{Roll: pose.Roll, Pitch: pose.Pitch, Yaw: pose.Yaw},
		Duration: 0.3,
	})
}

// SetAntennas sets both antenna positions.
func (r *HTTPController) SetAntennas(ctx context.Context, left, right float64) error {
	return r.postMove(ctx, moveRequest{
		Antennas: &[2]float64{clamp(left, -MaxAntenna, MaxAntenna), clamp(right, -MaxAntenna, MaxAntenna)},
		Duration: 0.15,
	})
}

// GetDaemonStatus returns the robot daemon state string.
func (r *HTTPController) GetDaemonStatus(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/api/daemon/status", nil)
	if err != nil {
		return "", err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("daemon status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("daemon status: unexpected status %d", resp.StatusCode)
	}

	var status struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("failed to decode daemon status: %w", err)
	}
	return status.State, nil
}

// SetVolume sets the robot's speaker volume (0-100).
func (r *HTTPController) SetVolume(ctx context.Context, level int) error {
	level = int(clamp(float64(level), 0, 100))
	return r.post(ctx, "/api/volume/set", map[string]int{"volume": level})
}

type headPose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

type moveRequest struct {
	Head     *headPose   `json:"target_head_pose"`
	Antennas *[2]float64 `json:"target_antennas"`
	BodyYaw  *float64    `json:"target_body_yaw"`
	Duration float64     `json:"duration"`
}

func (r *HTTPController) postMove(ctx context.Context, move moveRequest) error {
	if err := r.post(ctx, "/api/move/set_target", move); err != nil {
		return fmt.Errorf("move request failed: %w", err)
	}
	return nil
}

func (r *HTTPController) post(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}
