package solis

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://www.soliscloud.com:13333"

	StationDetailPath = "/v1/api/stationDetail"

	contentType = "application/json"
)

var (
	// ErrRemoteRejected matches any non-2xx response.
	ErrRemoteRejected = errors.New("solis: request rejected")
	// ErrEmptyResult is returned when a 2xx response carries no data object.
	ErrEmptyResult = errors.New("solis: response contains no data")
)

// StatusError carries the status of a non-2xx response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("solis: bad status: %s", e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRemoteRejected
}

// SignedRequest holds everything that goes into one authenticated call.
type SignedRequest struct {
	Method     string
	Resource   string
	Body       []byte
	ContentMD5 string
	Date       string
	Signature  string
}

// StringToSign returns the canonical text the server verifies.
func (r *SignedRequest) StringToSign() string {
	return StringToSign(r.Method, r.ContentMD5, contentType, r.Date, r.Resource)
}

func StringToSign(method, contentMD5, contentType, date, resource string) string {
	return strings.Join([]string{method, contentMD5, contentType, date, resource}, "\n")
}

// Sign returns base64(HMAC-SHA1(secret, s)).
func Sign(secret, s string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(s))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ContentMD5 returns base64(MD5(body)).
func ContentMD5(body []byte) string {
	sum := md5.Sum(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
	now       func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithClock sets the time source used for the Date header.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(baseURL, keyID, keySecret string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSignedRequest serializes body and signs it for resource.
func (c *Client) NewSignedRequest(resource string, body any) (*SignedRequest, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("solis: encode body: %w", err)
	}

	req := &SignedRequest{
		Method:     http.MethodPost,
		Resource:   resource,
		Body:       payload,
		ContentMD5: ContentMD5(payload),
		Date:       c.now().UTC().Format(http.TimeFormat),
	}
	req.Signature = Sign(c.keySecret, req.StringToSign())
	return req, nil
}

// Call posts body to resource and decodes the data object of the response
// into out.
func (c *Client) Call(ctx context.Context, resource string, body any, out any) error {
	signed, err := c.NewSignedRequest(resource, body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, signed.Method, c.baseURL+resource, bytes.NewReader(signed.Body))
	if err != nil {
		return fmt.Errorf("solis: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-MD5", signed.ContentMD5)
	req.Header.Set("Authorization", fmt.Sprintf("API %s:%s", c.keyID, signed.Signature))
	req.Header.Set("Date", signed.Date)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("solis: request %s failed: %w", resource, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	var env envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("solis: decode %s: %w", resource, err)
	}
	if env.Data == nil || string(*env.Data) == "null" {
		if env.Msg != "" {
			return fmt.Errorf("%w (code %s: %s)", ErrEmptyResult, env.Code, env.Msg)
		}
		return ErrEmptyResult
	}

	if err := json.Unmarshal(*env.Data, out); err != nil {
		return fmt.Errorf("solis: decode %s data: %w", resource, err)
	}
	return nil
}

// StationDetail fetches the current telemetry of one station.
func (c *Client) StationDetail(ctx context.Context, stationID string) (*StationDetail, error) {
	var detail StationDetail
	if err := c.Call(ctx, StationDetailPath, stationDetailRequest{ID: stationID}, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}
