package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// StatusError is returned when the timesheet application answers with a
// non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// Client talks to the timesheet application over plain HTTP, reusing the
// session cookie of a logged in browser.
type Client struct {
	*http.Client
	log *zap.Logger
}

// SubmitResult describes the response to a grid save.
type SubmitResult struct {
	Status   int
	FinalURL string
}

// NewClient returns a client whose cookie jar carries cookies for baseURL.
func NewClient(baseURL string, cookies []*http.Cookie, log *zap.Logger) (*Client, error) {
	cj, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if len(cookies) > 0 {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		cj.SetCookies(u, cookies)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		Client: &http.Client{Jar: cj},
		log:    log,
	}, nil
}

// FetchPage loads a timesheet grid page and parses it.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	body, _, err := c.do(req)
	if err != nil {
		return nil, err
	}
	p, err := ParsePage(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	c.log.Debug("loaded timesheet page",
		zap.String("uid", p.UID),
		zap.String("timesheet_id", p.TimesheetID),
		zap.Int("inputs", len(p.Inputs)))
	return p, nil
}

// Submit posts the grid form. No confirmation is parsed from the response.
func (c *Client) Submit(ctx context.Context, postURL string, fields Fields) (*SubmitResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL,
		strings.NewReader(fields.Values().Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Status: resp.StatusCode, FinalURL: resp.Request.URL.String()}, nil
}

func (c *Client) do(req *http.Request) ([]byte, *http.Response, error) {
	c.log.Debug("request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	r, err := c.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", req.URL, err)
	}
	if r.StatusCode < 200 || r.StatusCode > 299 {
		return nil, nil, &StatusError{Method: req.Method, URL: req.URL.String(), Code: r.StatusCode}
	}
	return body, r, nil
}
