// Package hue talks to a Philips Hue bridge: discovery, pairing,
// entertainment area control and DTLS color streaming.
package hue

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// DeviceType identifies this application when pairing with a bridge.
const DeviceType = "colco#device"

// ErrLinkButtonNotPressed is returned by Pair when the user has not yet
// pressed the link button on the Hue bridge.
var ErrLinkButtonNotPressed = errors.New("link button not pressed")

// ErrUnauthorized is returned when the bridge rejects the API credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Bridges serve a self-signed certificate.
var defaultHTTPClient = &http.Client{
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	},
}

// BaseURL returns the HTTPS root of the bridge at ip.
func BaseURL(ip net.IP) string {
	host := ip.String()
	if ip.To4() == nil {
		host = "[" + host + "]"
	}
	return "https://" + host
}

// Pair registers a new application with the bridge at baseURL and asks it
// to generate a streaming client key. The link button must be pressed
// before calling Pair.
func Pair(ctx context.Context, baseURL, deviceType string) (username, clientkey string, err error) {
	return pair(ctx, defaultHTTPClient, baseURL, deviceType)
}

func pair(ctx context.Context, hc *http.Client, baseURL, deviceType string) (string, string, error) {
	payload, err := json.Marshal(pairRequest{DeviceType: deviceType, GenerateClientKey: true})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api", bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("creating pair request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("pairing request: %w", err)
	}
	defer resp.Body.Close()

	var result []pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("decoding pair response: %w", err)
	}
	if len(result) == 0 {
		return "", "", fmt.Errorf("empty pair response")
	}

	r := result[0]
	switch {
	case r.Error != nil && r.Error.Type == 101:
		return "", "", ErrLinkButtonNotPressed
	case r.Error != nil:
		return "", "", fmt.Errorf("bridge error %d: %s", r.Error.Type, r.Error.Description)
	case r.Success == nil:
		return "", "", fmt.Errorf("unexpected pair response: no success or error")
	}
	return r.Success.Username, r.Success.Clientkey, nil
}

// Client issues CLIP v2 requests on behalf of a paired application.
type Client struct {
	baseURL  string
	username string
	http     *http.Client
}

// NewClient returns a client for the bridge at baseURL.
func NewClient(baseURL, username string) *Client {
	return &Client{baseURL: baseURL, username: username, http: defaultHTTPClient}
}

// EntertainmentArea represents a Hue entertainment configuration.
type EntertainmentArea struct {
	ID         string
	Name       string
	Type       string
	Status     string
	ChannelIDs []uint8
	Lights     int
}

func (a EntertainmentArea) String() string {
	return fmt.Sprintf("%s (%d channels, %d lights)", a.Name, len(a.ChannelIDs), a.Lights)
}

// EntertainmentAreas lists the entertainment configurations on the bridge.
func (c *Client) EntertainmentAreas(ctx context.Context) ([]EntertainmentArea, error) {
	resp, err := c.do(ctx, http.MethodGet, "/clip/v2/resource/entertainment_configuration", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching entertainment areas: %w", err)
	}
	defer resp.Body.Close()

	var result entertainmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding entertainment response: %w", err)
	}

	areas := make([]EntertainmentArea, 0, len(result.Data))
	for _, d := range result.Data {
		channelIDs := make([]uint8, len(d.Channels))
		for j, ch := range d.Channels {
			channelIDs[j] = ch.ChannelID
		}
		areas = append(areas, EntertainmentArea{
			ID:         d.ID,
			Name:       d.Metadata.Name,
			Type:       d.ConfigurationType,
			Status:     d.Status,
			ChannelIDs: channelIDs,
			Lights:     len(d.LightServices),
		})
	}
	return areas, nil
}

// Activate starts entertainment streaming mode for the area.
func (c *Client) Activate(ctx context.Context, areaID string) error {
	return c.setAreaAction(ctx, areaID, "start")
}

// Deactivate stops entertainment streaming mode for the area.
func (c *Client) Deactivate(ctx context.Context, areaID string) error {
	return c.setAreaAction(ctx, areaID, "stop")
}

func (c *Client) setAreaAction(ctx context.Context, areaID, action string) error {
	body := strings.NewReader(`{"action":"` + action + `"}`)
	resp, err := c.do(ctx, http.MethodPut, "/clip/v2/resource/entertainment_configuration/"+areaID, body)
	if err != nil {
		return fmt.Errorf("%s area %s: %w", action, areaID, err)
	}
	resp.Body.Close()
	return nil
}

// do sends an authenticated request and maps non-2xx replies to errors.
// The caller closes the body on success.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("hue-application-key", c.username)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp, nil
}

// JSON mapping structs

type pairRequest struct {
	DeviceType        string `json:"devicetype"`
	GenerateClientKey bool   `json:"generateclientkey"`
}

type pairResponse struct {
	Success *pairSuccess `json:"success"`
	Error   *pairError   `json:"error"`
}

type pairSuccess struct {
	Username  string `json:"username"`
	Clientkey string `json:"clientkey"`
}

type pairError struct {
	Type        int    `json:"type"`
	Description string `json:"description"`
}

type entertainmentResponse struct {
	Data []entertainmentData `json:"data"`
}

type entertainmentData struct {
	ID                string            `json:"id"`
	Metadata          entertainmentMeta `json:"metadata"`
	ConfigurationType string            `json:"configuration_type"`
	Status            string            `json:"status"`
	Channels          []channelData     `json:"channels"`
	LightServices     []json.RawMessage `json:"light_services"`
}

type entertainmentMeta struct {
	Name string `json:"name"`
}

type channelData struct {
	ChannelID uint8 `json:"channel_id"`
}
