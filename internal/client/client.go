// Package client talks to the upload service and the external chat service
// on behalf of the portal.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"pyqportal/internal/config"
)

const defaultTimeout = 60 * time.Second

// APIError is a non-2xx answer from either service. Message is empty when the
// body carried none of the error, msg or message fields.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// TokenStore holds the bearer token attached to upload service requests.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: token}
}

func (s *TokenStore) Get() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *TokenStore) Clear() {
	s.Set("")
}

type Options struct {
	UploadBaseURL string
	ChatBaseURL   string
	HTTPClient    *http.Client
	Tokens        *TokenStore
}

// Client is safe for concurrent use.
type Client struct {
	uploadBase string
	chatBase   string
	http       *http.Client
	tokens     *TokenStore
}

func New(opts Options) *Client {
	if opts.UploadBaseURL == "" {
		opts.UploadBaseURL = config.DefaultUploadBaseURL
	}
	if opts.ChatBaseURL == "" {
		opts.ChatBaseURL = config.DefaultChatBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.Tokens == nil {
		opts.Tokens = NewTokenStore("")
	}
	return &Client{
		uploadBase: strings.TrimRight(opts.UploadBaseURL, "/"),
		chatBase:   strings.TrimRight(opts.ChatBaseURL, "/"),
		http:       opts.HTTPClient,
		tokens:     opts.Tokens,
	}
}

// Tokens exposes the token store shared by every upload service request.
func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

type service int

const (
	uploadService service = iota
	chatService
)

func (c *Client) url(svc service, path string, query url.Values) string {
	base := c.uploadBase
	if svc == chatService {
		base = c.chatBase
	}
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, svc service, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(svc, path, query), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if svc == uploadService {
		if tok := c.tokens.Get(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}

// do sends req and returns the response when it is 2xx. Any other status is
// turned into an *APIError and the body is closed.
func (c *Client) do(svc service, req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	if svc == uploadService && resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Clear()
	}
	return nil, decodeAPIError(resp)
}

func (c *Client) doJSON(ctx context.Context, svc service, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, svc, method, path, query, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.do(svc, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil {
		for _, m := range []string{body.Error, body.Msg, body.Message} {
			if m != "" {
				apiErr.Message = m
				break
			}
		}
	}
	return apiErr
}
