// SPDX-License-Identifier: Apache-2.0

// Package client calls a running injection points API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/pgtest/injection-points/injection/api/model"
	"github.com/pgtest/injection-points/injection/fatalerror"
)

// Client is an injection points API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL, e.g.
// http://127.0.0.1:9090/test.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// Attach attaches action to the point name.
func (c *Client) Attach(ctx context.Context, name, action string) error {
	return c.post(ctx, "/attach", &model.AttachRequest{Name: name, Action: action}, nil)
}

// Run runs the point name in the server process and returns the notices it
// emitted. It blocks for as long as a wait point does.
func (c *Client) Run(ctx context.Context, name string) ([]string, error) {
	var resp model.StatusResponse
	if err := c.post(ctx, "/run", &model.PointRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return resp.Notices, nil
}

// Wakeup wakes up the process waiting on name.
func (c *Client) Wakeup(ctx context.Context, name string) error {
	return c.post(ctx, "/wakeup", &model.PointRequest{Name: name}, nil)
}

// Detach detaches the point name.
func (c *Client) Detach(ctx context.Context, name string) error {
	return c.post(ctx, "/detach", &model.PointRequest{Name: name}, nil)
}

// SetLocal links points attached from now on to the server process.
func (c *Client) SetLocal(ctx context.Context) error {
	return c.post(ctx, "/setLocal", struct{}{}, nil)
}

// State returns the server's view of the shared tables.
func (c *Client) State(ctx context.Context) (*model.StateResponse, error) {
	var state model.StateResponse
	if err := c.do(ctx, http.MethodGet, "/state", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Ping checks the server is up.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", nil, nil)
}

func (c *Client) post(ctx context.Context, path string, body, dst interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), dst)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if dst == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}
	return render.DecodeJSON(resp.Body, dst)
}

// decodeError turns an error response into a *model.ErrorResponse.
func decodeError(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var errorResponse model.ErrorResponse
	if err := render.DecodeJSON(bytes.NewReader(data), &errorResponse); err != nil || errorResponse.ErrorType == "" {
		return &model.ErrorResponse{
			ErrorType:    string(fatalerror.Unknown),
			ErrorMessage: fmt.Sprintf("unexpected response %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}
	errorResponse.ErrorType = string(fatalerror.GetValidErrorType(errorResponse.ErrorType))
	return &errorResponse
}

// ErrorType returns the error type of an API error, or "" for other errors.
func ErrorType(err error) fatalerror.ErrorType {
	var errorResponse *model.ErrorResponse
	if errors.As(err, &errorResponse) {
		return fatalerror.ErrorType(errorResponse.ErrorType)
	}
	return ""
}
