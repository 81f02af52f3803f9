// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package drill

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/MockSRE/services/profile/datatypes"
	"github.com/AleutianAI/MockSRE/services/profile/failuremode"
)

// Client talks to a running profile service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for baseURL. A nil httpClient gets a client
// with a 30s timeout, long enough to outlast every injected delay.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// APIError is a non-2xx admin API response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("profile service returned %d: %s", e.Status, e.Detail)
}

// SetMode switches the failure mode.
func (c *Client) SetMode(ctx context.Context, mode failuremode.Mode) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/failure-mode/"+string(mode), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("set failure mode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return nil
}

// Status reads the current failure mode.
func (c *Client) Status(ctx context.Context) (*datatypes.FailureModeStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/admin/failure-mode", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read failure mode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	var status datatypes.FailureModeStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode failure mode status: %w", err)
	}
	return &status, nil
}

// ProbeResult is one profile lookup as seen by a client.
type ProbeResult struct {
	ID      int64
	Status  int
	Mode    string
	Latency time.Duration
	Err     error
}

// GetProfile performs one lookup and records status, mode header and
// latency. Transport failures are reported in Err, not returned.
func (c *Client) GetProfile(ctx context.Context, id int64) ProbeResult {
	res := ProbeResult{ID: id}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/users/profile/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	res.Status = resp.StatusCode
	res.Mode = resp.Header.Get("X-Failure-Mode")
	return res
}

func decodeAPIError(resp *http.Response) error {
	var body datatypes.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Detail == "" {
		body.Detail = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Detail: body.Detail}
}
