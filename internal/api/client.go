// Package api calls the server's REST endpoints for call reporting and recording upload.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/config"
	apperrors "github.com/openclaw/dial-agent-go/internal/errors"
	"github.com/openclaw/dial-agent-go/internal/model"
)

const (
	pathCallStatus      = "/mobile/call/status"
	pathCallEnd         = "/mobile/call/end"
	pathRecordingUpload = "/mobile/recording/upload"
	pathPing            = "/mobile/ping"

	maxResponseBytes = 64 * 1024
)

// SessionSource supplies the current REST base URL and bearer token.
type SessionSource interface {
	APIBase(ctx context.Context) (string, error)
	AuthToken(ctx context.Context) (string, error)
}

// envelope is the server's standard response wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) ok() bool {
	return e.Success || e.Code == http.StatusOK
}

type StatusReport struct {
	CallID    string `json:"callId"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

type Client struct {
	httpClient   *http.Client
	uploadClient *http.Client
	session      SessionSource
}

func NewClient(session SessionSource) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: config.RESTRequestTimeout},
		uploadClient: &http.Client{Timeout: config.UploadTimeout},
		session:      session,
	}
}

// Ping checks that the REST API answers. It does not require a successful envelope.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, pathPing, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Connectivity(fmt.Errorf("api: ping: %w", err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		return apperrors.Connectivity(fmt.Errorf("api: ping returned status %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) ReportStatus(ctx context.Context, report StatusReport) error {
	return c.postJSON(ctx, pathCallStatus, report)
}

func (c *Client) ReportEnd(ctx context.Context, report model.CallEndReport) error {
	return c.postJSON(ctx, pathCallEnd, report)
}

// UploadRecording streams the file at path as multipart field "file" together with callId.
func (c *Client) UploadRecording(ctx context.Context, callID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("api: opening recording: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeUpload(mw, f, callID, filepath.Base(path))
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, pathRecordingUpload, pr)
	if err != nil {
		pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.do(c.uploadClient, req, pathRecordingUpload)
}

func writeUpload(mw *multipart.Writer, r io.Reader, callID, filename string) error {
	if err := mw.WriteField("callId", callID); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("api: marshalling %s request: %w", path, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(c.httpClient, req, path)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	base, err := c.session.APIBase(ctx)
	if err != nil {
		return nil, err
	}
	if base == "" {
		return nil, apperrors.Precondition("missing_url")
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}

	token, err := c.session.AuthToken(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(httpClient *http.Client, req *http.Request, path string) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return apperrors.External(path, fmt.Errorf("api: sending request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.External(path, fmt.Errorf("api: reading response: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return apperrors.Unauthorized("Session expired")
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode != http.StatusOK || decodeErr != nil || !env.ok() {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return apperrors.External(path, fmt.Errorf("api: request failed: %s", msg))
	}

	log.Debug().Str("component", "api").Str("path", path).Msg("request succeeded")
	return nil
}
