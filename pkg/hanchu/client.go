package hanchu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://iess3.hanchuess.com"

	pathLogin            = "/gateway/identify/auth/login/account"
	pathParallelPower    = "/gateway/platform/pcs/parallelPowerChart"
	pathRackData         = "/gateway/platform/rack/queryRackDataDivisions"
	pathEnergyFlow       = "/gateway/strategy/energy/flow"
	pathPowerMinuteChart = "/gateway/platform/pcs/powerMinuteChart"
	pathSetWorkMode      = "/gateway/platform/pcs/setWorkMode"

	defaultRequestTimeout = 30 * time.Second
)

// envelope is the common response wrapper of the vendor API.
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the Hanchu IESS3 cloud. All request bodies are AES-CBC
// encrypted, the login password is additionally RSA encrypted. The exact
// paths and payload schema are a vendor contract discovered empirically.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials
	session    *AuthSession
}

var _ InverterReader = (*Client)(nil)
var _ BatteryReader = (*Client)(nil)
var _ WorkModeController = (*Client)(nil)

func NewClient(creds Credentials) *Client {
	return NewClientWithHTTP(creds, DefaultBaseURL, &http.Client{Timeout: defaultRequestTimeout})
}

func NewClientWithHTTP(creds Credentials, baseURL string, httpClient *http.Client) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		creds:      creds,
	}
	c.session = NewAuthSession(c.login)
	return c
}

func (c *Client) Credentials() Credentials {
	return c.creds
}

func (c *Client) DevicesInfo() DevicesInfo {
	return DevicesInfo{
		InverterSerial: c.creds.InverterSerial,
		BatterySerial:  c.creds.BatterySerial,
		HasBattery:     c.creds.HasBattery(),
	}
}

// Session exposes the auth session for callers that need to pre-warm it.
func (c *Client) Session() *AuthSession {
	return c.session
}

func (c *Client) FetchInverterReading(ctx context.Context) (*InverterReading, error) {
	data, err := c.post(ctx, pathParallelPower, map[string]any{"sn": c.creds.InverterSerial})
	if err != nil {
		return nil, err
	}
	var payload struct {
		MainPower map[string]any `json:"mainPower"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &MalformedPayloadError{Field: "data", Reason: err.Error()}
	}
	raw := payload.MainPower
	if raw == nil {
		// some firmwares put the fields at the top level
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, &MalformedPayloadError{Field: "mainPower", Reason: err.Error()}
		}
	}
	return normalizeInverterReading(raw, c.creds.InverterSerial)
}

func (c *Client) FetchBatteryReading(ctx context.Context) (*BatteryReading, error) {
	if !c.creds.HasBattery() {
		return nil, errors.New("hanchu: no battery serial configured")
	}
	data, err := c.post(ctx, pathRackData, map[string]any{"sn": c.creds.BatterySerial})
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedPayloadError{Field: "data", Reason: err.Error()}
	}
	return normalizeBatteryReading(raw, c.creds.BatterySerial)
}

func (c *Client) FetchEnergyFlow(ctx context.Context, date string) (*EnergyFlowReading, error) {
	data, err := c.post(ctx, pathEnergyFlow, map[string]any{
		"devId":  c.creds.InverterSerial,
		"detail": false,
		"date":   date,
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		SumData map[string]any `json:"sumData"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &MalformedPayloadError{Field: "data", Reason: err.Error()}
	}
	if payload.SumData == nil {
		return nil, &MalformedPayloadError{Field: "sumData", Reason: "missing"}
	}
	return normalizeEnergyFlow(payload.SumData, date), nil
}

func (c *Client) SetWorkMode(ctx context.Context, mode WorkMode) error {
	if !mode.Valid() {
		return &RejectedByDeviceError{Msg: fmt.Sprintf("invalid work mode %d", int(mode))}
	}
	_, err := c.post(ctx, pathSetWorkMode, map[string]any{
		"sn":       c.creds.InverterSerial,
		"workMode": int(mode),
	})
	return err
}

// login performs the account login and returns the access token. Used by the
// auth session, never called directly.
func (c *Client) login(ctx context.Context) (string, error) {
	pwdEnc, err := rsaEncryptPassword(c.creds.Password)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	env, err := c.doPost(ctx, pathLogin, map[string]any{
		"account": c.creds.Username,
		"pwd":     pwdEnc,
	}, "")
	if err != nil {
		return "", err
	}
	if !env.Success || env.Code != 200 {
		return "", &AuthError{Err: fmt.Errorf("login failed (code %d): %s", env.Code, env.Msg)}
	}
	var token string
	if err := json.Unmarshal(env.Data, &token); err != nil || token == "" {
		return "", &AuthError{Err: errors.New("login response contained no token")}
	}
	return token, nil
}

// post runs an authenticated request. On a 401-class rejection the token is
// invalidated and the request retried once with a fresh login.
func (c *Client) post(ctx context.Context, path string, payload map[string]any) (json.RawMessage, error) {
	token, err := c.session.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}
	env, err := c.doPost(ctx, path, payload, token)
	if err == nil && authRejected(env) {
		c.session.Invalidate(token)
		token, err = c.session.EnsureValid(ctx)
		if err != nil {
			return nil, err
		}
		env, err = c.doPost(ctx, path, payload, token)
	}
	if err != nil {
		return nil, err
	}
	if authRejected(env) {
		return nil, &AuthError{Err: fmt.Errorf("request rejected (code %d): %s", env.Code, env.Msg)}
	}
	if !env.Success {
		return nil, &RejectedByDeviceError{Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}

func (c *Client) doPost(ctx context.Context, path string, payload map[string]any, token string) (*envelope, error) {
	plain, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	body, err := aesEncryptBody(plain)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set("accept", "application/json, text/plain, */*")
	req.Header.Set("appplat", "iess")
	req.Header.Set("origin", c.baseURL)
	req.Header.Set("referer", c.baseURL+"/")
	req.Header.Set("content-type", "text/plain")
	req.Header.Set("access-token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// report it through the envelope so post() can invalidate and retry
		return &envelope{Success: false, Code: resp.StatusCode}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{Err: fmt.Errorf("unexpected status %d on %s", resp.StatusCode, path)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &MalformedPayloadError{Field: "envelope", Reason: err.Error()}
	}
	return &env, nil
}

func authRejected(env *envelope) bool {
	return env != nil && !env.Success &&
		(env.Code == http.StatusUnauthorized || env.Code == http.StatusForbidden)
}
