// Package gateway is the REST client for the room-authorization
// gateway. Only the request/response contracts live here; the
// gateway's own authorization logic is someone else's problem.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

var _ core.Gateway = (*Client)(nil)

type iceServerJSON struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type iceServersResponse struct {
	Success    bool            `json:"success"`
	ICEServers []iceServerJSON `json:"iceServers"`
}

func (c *Client) ICEServers(ctx context.Context) ([]webrtc.ICEServer, error) {
	var resp iceServersResponse
	if err := c.do(ctx, http.MethodGet, "/rtc/ice-servers", nil, &resp, false); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigUnavailable, err)
	}
	if !resp.Success || len(resp.ICEServers) == 0 {
		return nil, core.ErrConfigUnavailable
	}
	servers := make([]webrtc.ICEServer, 0, len(resp.ICEServers))
	for _, s := range resp.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers, nil
}

type joinResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Room    struct {
		RoomID domain.RoomID `json:"roomId"`
	} `json:"room"`
}

func (c *Client) JoinRoom(ctx context.Context, sessionID domain.SessionID) (domain.RoomID, error) {
	body := map[string]string{"sessionId": string(sessionID)}
	var resp joinResponse
	if err := c.do(ctx, http.MethodPost, "/rtc/rooms/join", body, &resp, true); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrNotAuthorized, err)
	}
	if !resp.Success || resp.Room.RoomID == "" {
		log.Warn().Str("module", "gateway").Str("session", string(sessionID)).Str("error", resp.Error).Msg("join rejected")
		return "", core.ErrNotAuthorized
	}
	return resp.Room.RoomID, nil
}

func (c *Client) EndRoom(ctx context.Context, sessionID domain.SessionID) error {
	var resp struct {
		Success bool `json:"success"`
	}
	path := fmt.Sprintf("/rtc/rooms/%s/end", sessionID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp, true); err != nil {
		return err
	}
	if !resp.Success {
		return core.ErrNotAuthorized
	}
	return nil
}

type statusResponse struct {
	Success bool            `json:"success"`
	Room    core.RoomStatus `json:"room"`
}

func (c *Client) RoomStatus(ctx context.Context, sessionID domain.SessionID) (core.RoomStatus, error) {
	var resp statusResponse
	path := fmt.Sprintf("/rtc/rooms/%s", sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return core.RoomStatus{}, err
	}
	if !resp.Success {
		return core.RoomStatus{}, core.ErrNotAuthorized
	}
	return resp.Room, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, auth bool) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
