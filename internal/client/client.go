// Package client talks to the docchat HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/dgallion1/docchat/internal/ingest"
	"github.com/dgallion1/docchat/internal/source"
	"github.com/dgallion1/docchat/internal/store"
)

type tokenKey struct{}

// WithToken returns a context whose requests authenticate with token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// ErrNoToken is returned when a request context carries no token.
var ErrNoToken = errors.New("no api token in context")

// StatusError is a non-2xx API response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("docchat api status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client communicates with the docchat HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Chat calls wait on the model, including its retries.
			Timeout: 3 * time.Minute,
		},
	}
}

// FormatResult is the response of the format endpoint.
type FormatResult struct {
	Citations []int  `json:"citations"`
	HTML      string `json:"html,omitempty"`
}

// Format parses reply text on the server. With html set the response
// carries the rendered fragment.
func (c *Client) Format(ctx context.Context, text string, sources source.Set, html bool) (*FormatResult, error) {
	var out FormatResult
	err := c.doJSON(ctx, http.MethodPost, "/api/format"+renderQuery(html), map[string]any{
		"text":    text,
		"sources": sources,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatResult is one answered question.
type ChatResult struct {
	Session    store.Session `json:"session"`
	Message    store.Message `json:"message"`
	Content    string        `json:"content"`
	Sources    source.Set    `json:"sources"`
	Unresolved []int         `json:"unresolved_citations,omitempty"`
	HTML       string        `json:"html,omitempty"`
}

// Ask sends a question. An empty sessionID starts a new session.
func (c *Client) Ask(ctx context.Context, userID, sessionID, question string) (*ChatResult, error) {
	var out ChatResult
	err := c.doJSON(ctx, http.MethodPost, "/api/chat", map[string]string{
		"user_id":    userID,
		"session_id": sessionID,
		"question":   question,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Sessions lists the user's sessions, most recent first.
func (c *Client) Sessions(ctx context.Context, userID string, limit int) ([]store.Session, error) {
	q := url.Values{"user_id": {userID}}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var out struct {
		Sessions []store.Session `json:"sessions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// HistoryMessage is a stored message. Clients re-parse Content to display
// assistant replies.
type HistoryMessage struct {
	store.Message
	HTML string `json:"html,omitempty"`
}

// History returns a session and its messages in order.
func (c *Client) History(ctx context.Context, userID, sessionID string) (store.Session, []HistoryMessage, error) {
	var out struct {
		Session  store.Session    `json:"session"`
		Messages []HistoryMessage `json:"messages"`
	}
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/messages?" + url.Values{"user_id": {userID}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return store.Session{}, nil, err
	}
	return out.Session, out.Messages, nil
}

// DeleteSession removes a session and its messages.
func (c *Client) DeleteSession(ctx context.Context, userID, sessionID string) error {
	path := "/api/sessions/" + url.PathEscape(sessionID) + "?" + url.Values{"user_id": {userID}}.Encode()
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// Accepted is the response to a queued upload.
type Accepted struct {
	JobID    string           `json:"job_id"`
	DocID    string           `json:"doc_id"`
	Filename string           `json:"filename"`
	Status   ingest.JobStatus `json:"status"`
	PollURL  string           `json:"poll_url"`
}

// Upload sends one file for ingestion.
func (c *Client) Upload(ctx context.Context, userID, filename, title string, r io.Reader) (*Accepted, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("user_id", userID)
	if title != "" {
		mw.WriteField("title", title)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	var out Accepted
	if err := c.do(ctx, http.MethodPost, "/api/ingest", &buf, mw.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobStatus fetches the current state of an ingestion job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*ingest.JobSnapshot, error) {
	var out ingest.JobSnapshot
	if err := c.doJSON(ctx, http.MethodGet, "/api/ingest/"+url.PathEscape(jobID)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitJob polls a job until it reaches a terminal status or ctx ends.
func (c *Client) WaitJob(ctx context.Context, jobID string, interval time.Duration) (*ingest.JobSnapshot, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		snap, err := c.JobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if snap.Status.Terminal() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Documents lists the user's ingested documents.
func (c *Client) Documents(ctx context.Context, userID string) ([]store.Document, error) {
	var out struct {
		Documents []store.Document `json:"documents"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents?"+url.Values{"user_id": {userID}}.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// DeleteDocument removes a document and returns how many chunks went with it.
func (c *Client) DeleteDocument(ctx context.Context, userID, docID string) (int, error) {
	var out struct {
		ChunksDeleted int `json:"chunks_deleted"`
	}
	path := "/api/documents/" + url.PathEscape(docID) + "?" + url.Values{"user_id": {userID}}.Encode()
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return 0, err
	}
	return out.ChunksDeleted, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	token := tokenFrom(ctx)
	if token == "" {
		return ErrNoToken
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func renderQuery(html bool) string {
	if html {
		return "?render=html"
	}
	return ""
}
