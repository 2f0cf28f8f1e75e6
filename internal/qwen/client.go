// Package qwen is a client for the DashScope image synthesis and image edit APIs.
package qwen

import (
	"fmt"
	"net/http"
	"time"

	"github.com/imroc/req"
	"github.com/massmux/QwenImageBot/internal"
)

const (
	defaultSubmitURL = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text2image/image-synthesis"
	defaultTaskURL   = "https://dashscope.aliyuncs.com/api/v1/tasks/"
	defaultEditURL   = "https://dashscope.aliyuncs.com/api/v1/services/aigc/multimodal-generation/generation"
)

type Client struct {
	submitURL     string
	taskURL       string
	editURL       string
	req           *req.Req
	pollInterval  time.Duration
	pollAttempts  int
	submitTimeout time.Duration
	pollTimeout   time.Duration
	editTimeout   time.Duration
	// maxEdge bounds the longest side of images sent for editing.
	maxEdge uint
}

type Option func(*Client)

func WithSubmitURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.submitURL = url
		}
	}
}

func WithTaskURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.taskURL = url
		}
	}
}

func WithEditURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.editURL = url
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.req.SetClient(client)
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

func WithPollAttempts(n int) Option {
	return func(c *Client) {
		c.pollAttempts = n
	}
}

func WithSubmitTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.submitTimeout = d
	}
}

func WithPollTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.pollTimeout = d
	}
}

func WithEditTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.editTimeout = d
	}
}

func WithMaxEdge(px uint) Option {
	return func(c *Client) {
		c.maxEdge = px
	}
}

// NewClient returns a client with the DashScope endpoints, a 2s poll interval and 60 poll attempts.
func NewClient(opts ...Option) *Client {
	c := &Client{
		submitURL:     defaultSubmitURL,
		taskURL:       defaultTaskURL,
		editURL:       defaultEditURL,
		req:           req.New(),
		pollInterval:  2 * time.Second,
		pollAttempts:  60,
		submitTimeout: 180 * time.Second,
		pollTimeout:   30 * time.Second,
		editTimeout:   180 * time.Second,
		maxEdge:       2048,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 2 * time.Second
	}
	if c.pollAttempts <= 0 {
		c.pollAttempts = 60
	}
	if c.submitTimeout <= 0 {
		c.submitTimeout = 180 * time.Second
	}
	if c.pollTimeout <= 0 {
		c.pollTimeout = 30 * time.Second
	}
	if c.editTimeout <= 0 {
		c.editTimeout = 180 * time.Second
	}
	return c
}

// NewClientFromConfiguration applies the qwen_image section on top of NewClient.
func NewClientFromConfiguration(q internal.QwenConfiguration, httpClient *http.Client, opts ...Option) *Client {
	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }
	base := []Option{
		WithSubmitURL(q.BaseURL),
		WithTaskURL(q.TaskURL),
		WithEditURL(q.EditURL),
		WithPollInterval(seconds(q.PollInterval)),
		WithPollAttempts(q.PollAttempts),
		WithSubmitTimeout(seconds(q.SubmitTimeout)),
		WithPollTimeout(seconds(q.PollTimeout)),
		WithEditTimeout(seconds(q.EditTimeout)),
	}
	if httpClient != nil {
		base = append(base, WithHTTPClient(httpClient))
	}
	return NewClient(append(base, opts...)...)
}

func authHeader(apiKey string) req.Header {
	return req.Header{
		"Authorization": fmt.Sprintf("Bearer %s", apiKey),
	}
}

func jsonHeader(apiKey string) req.Header {
	h := authHeader(apiKey)
	h["Content-Type"] = "application/json"
	h["Accept"] = "application/json"
	return h
}
