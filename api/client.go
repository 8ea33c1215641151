// Package api is a thin REST transport shared by the service wrappers.
// It exposes the synchronous "send form request, return status + body"
// surface the token dispenser needs, plus a couple of convenience calls.
package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/asl19/go-paskoocheh/util"
)

var logger = logrus.WithField("component", "paskoocheh.api")

type Client struct {
	rest *resty.Client
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.rest.SetTimeout(d) }
}

func WithRestyClient(rc *resty.Client) Option {
	return func(c *Client) { c.rest = rc }
}

func New(opts ...Option) *Client {
	c := &Client{rest: resty.New()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send issues a single request. A non-nil form makes the body
// application/x-www-form-urlencoded; GET requests pass nil. The status
// code and raw body are returned as-is so callers can classify 4xx
// bodies themselves (the auth endpoint reports errors inside a 403).
func (c *Client) Send(ctx context.Context, method, endpoint string, form url.Values) (int, []byte, error) {

	r := c.rest.R().SetContext(ctx)
	if util.HttpTraceEnabled() {
		r.EnableTrace()
	}
	if len(form) > 0 {
		r.SetFormDataFromValues(form)
	}

	resp, err := r.Execute(method, endpoint)
	if err != nil {
		return 0, nil, err
	}

	logTraceInfo(endpoint, resp)
	return resp.StatusCode(), resp.Body(), nil
}

func (c *Client) GetText(ctx context.Context, endpoint string) (int, []byte, error) {
	return c.Send(ctx, http.MethodGet, endpoint, nil)
}

func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	return c.Send(ctx, http.MethodPost, endpoint, form)
}

// Download fetches a binary resource and fails on any non-2xx status.
func (c *Client) Download(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := c.rest.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &RequestError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return resp.Body(), nil
}

func logTraceInfo(endpoint string, resp *resty.Response) {

	if !util.HttpTraceEnabled() {
		return
	}

	ti := resp.Request.TraceInfo()
	logger.WithFields(logrus.Fields{
		"url":         endpoint,
		"status":      resp.StatusCode(),
		"proto":       resp.Proto(),
		"time":        resp.Time(),
		"dns":         ti.DNSLookup,
		"conn":        ti.ConnTime,
		"tls":         ti.TLSHandshake,
		"server":      ti.ServerTime,
		"total":       ti.TotalTime,
		"conn_reused": ti.IsConnReused,
	}).Debug("http trace")
}
