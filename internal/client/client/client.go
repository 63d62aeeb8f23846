package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultUserHeader matches the server's default session header.
const DefaultUserHeader = "X-User-ID"

type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type EntryMetadata struct {
	ID         string    `json:"entry_id"`
	EntryDate  string    `json:"entry_date"`
	PromptUsed *string   `json:"prompt_used"`
	WordCount  int       `json:"word_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Entry struct {
	EntryMetadata
	Content string `json:"content"`
}

type NewEntry struct {
	Content    string  `json:"content"`
	PromptUsed *string `json:"prompt_used,omitempty"`
	// EntryDate is YYYY-MM-DD; empty means today on the server.
	EntryDate string `json:"entry_date,omitempty"`
}

type Client struct {
	baseURL    string
	userID     string
	userHeader string
	http       *http.Client
}

func New(baseURL, userID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		userHeader: DefaultUserHeader,
		http:       &http.Client{Timeout: timeout},
	}
}

// WithUserHeader overrides the session header name.
func (c *Client) WithUserHeader(name string) *Client {
	if name != "" {
		c.userHeader = name
	}
	return c
}

type errorBody struct {
	Error             string `json:"error"`
	AttemptsRemaining *int   `json:"attempts_remaining"`
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(c.userHeader, c.userID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if json.NewDecoder(resp.Body).Decode(&eb) == nil {
			apiErr.Message = eb.Error
			apiErr.AttemptsRemaining = eb.AttemptsRemaining
		}
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			apiErr.RetryAfter = time.Duration(s) * time.Second
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) Setup(ctx context.Context, pin, method string) error {
	in := map[string]string{"pin": pin}
	if method != "" {
		in["auth_method"] = method
	}
	return c.do(ctx, http.MethodPost, "/journal/security/setup", "", in, nil)
}

func (c *Client) Unlock(ctx context.Context, pin string) (*Token, error) {
	var tok Token
	if err := c.do(ctx, http.MethodPost, "/journal/unlock", "", map[string]string{"pin": pin}, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// ListEntries returns metadata only. from and to are optional YYYY-MM-DD.
func (c *Client) ListEntries(ctx context.Context, token, from, to string) ([]EntryMetadata, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	path := "/journal/entries"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []EntryMetadata
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetEntry(ctx context.Context, token, id string) (*Entry, error) {
	var out Entry
	if err := c.do(ctx, http.MethodGet, "/journal/entries/"+url.PathEscape(id), token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateEntry(ctx context.Context, token string, e NewEntry) (*EntryMetadata, error) {
	var out EntryMetadata
	if err := c.do(ctx, http.MethodPost, "/journal/entries", token, e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateEntry(ctx context.Context, token, id, content string) (*EntryMetadata, error) {
	var out EntryMetadata
	err := c.do(ctx, http.MethodPut, "/journal/entries/"+url.PathEscape(id), token,
		map[string]string{"content": content}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteEntry(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/journal/entries/"+url.PathEscape(id), token, nil, nil)
}
