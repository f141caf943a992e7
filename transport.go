package capmux

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
)

const (
	transportTimeoutSeconds = 30
	transportMaxRetries     = 3
)

// request is a fully-specified wire request: method, URL, headers, query
// parameters and either a form or a JSON body. Adapters build these; only the
// transport executes them.
type request struct {
	method string
	url    string
	header http.Header
	query  url.Values
	form   url.Values
	json   any
}

// response is the raw wire response handed back to the adapter's parser.
type response struct {
	status int
	body   []byte
}

// httpDoer is the injected HTTP collaborator. tls_client.HttpClient satisfies
// it in production; tests plug in stubs.
type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
	CloseIdleConnections()
}

// transport owns one persistent HTTP session shared by every request a
// service instance issues. It retries network-level failures with bounded
// exponential backoff; protocol-level conditions are never retried here.
type transport struct {
	client httpDoer
	// handleHTTPErrors escalates HTTP error statuses to NetworkError. Most
	// services answer 200 with the error in the body; deathbycaptcha uses
	// status codes as part of its protocol and turns this off.
	handleHTTPErrors bool
}

func newTransport(handleHTTPErrors bool) (*transport, error) {
	jar := tls_client.NewCookieJar()
	client, err := tls_client.NewHttpClient(
		tls_client.NewNoopLogger(),
		tls_client.WithTimeoutSeconds(transportTimeoutSeconds),
		tls_client.WithCookieJar(jar),
	)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}
	return &transport{client: client, handleHTTPErrors: handleHTTPErrors}, nil
}

// do executes req, retrying connection-level failures up to
// transportMaxRetries times with exponential backoff. The context bounds the
// whole exchange including backoff sleeps.
func (t *transport) do(ctx context.Context, req *request) (*response, error) {
	var lastErr error

	for attempt := range transportMaxRetries {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, &NetworkError{Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		httpReq, err := t.buildHTTPRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		resp, err := t.client.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if t.handleHTTPErrors && resp.StatusCode >= 400 {
			return nil, &NetworkError{
				Err: fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.url),
			}
		}

		return &response{status: resp.StatusCode, body: body}, nil
	}

	return nil, &NetworkError{
		Err: fmt.Errorf("request failed after %d attempts: %w", transportMaxRetries, lastErr),
	}
}

func (t *transport) buildHTTPRequest(ctx context.Context, req *request) (*http.Request, error) {
	target := req.url
	if len(req.query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.json != nil:
		payload, err := json.Marshal(req.json)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	case len(req.form) > 0:
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for name, values := range req.header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	return httpReq, nil
}

// close releases the session's idle connections. After close the transport
// must not be reused.
func (t *transport) close() {
	t.client.CloseIdleConnections()
}
