package httpclient

import (
	"context"
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/cockroachdb/errors"
	logger "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	// Enable debug mode
	Debug bool

	// Default headers
	Headers map[string]string

	// Per request timeout when the context carries no deadline.
	Timeout time.Duration
}

type Client struct {
	baseURL *url.URL
	client  *fasthttp.Client
	Config
}

func New(baseURL string, config ...Config) (*Client, error) {
	parsedBaseURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "can't parse base url"), common.ErrConfig)
	}
	if parsedBaseURL.Scheme == "" || parsedBaseURL.Host == "" {
		return nil, errors.Wrapf(common.ErrConfig, "base url %q needs scheme and host", baseURL)
	}
	var cf Config
	if len(config) > 0 {
		cf = config[0]
	}
	if len(cf.Headers) == 0 {
		cf.Headers = make(map[string]string)
	}
	if cf.Timeout <= 0 {
		cf.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL: parsedBaseURL,
		client: &fasthttp.Client{
			Name: "bridge-client-aptos",
		},
		Config: cf,
	}, nil
}

type RequestOptions struct {
	path   string
	method string
	Body   []byte
	Query  url.Values
	Header map[string]string
}

type HttpResponse struct {
	URL string
	fasthttp.Response
}

// IsSuccess reports a 2xx status.
func (r *HttpResponse) IsSuccess() bool {
	code := r.StatusCode()
	return code >= 200 && code < 300
}

func (r *HttpResponse) UnmarshalBody(out any) error {
	body, err := r.BodyUncompressed()
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "can't uncompress body from %v", r.URL), common.ErrDeserialization)
	}
	contentType := strings.ToLower(string(r.Header.ContentType()))
	switch {
	case strings.HasPrefix(contentType, "application/json"),
		strings.HasPrefix(contentType, "application/graphql-response+json"):
		if err := json.Unmarshal(body, out); err != nil {
			return errors.Mark(errors.Wrapf(err, "can't unmarshal json body from %s, %q", r.URL, string(body)), common.ErrDeserialization)
		}
		return nil
	case strings.HasPrefix(contentType, "text/plain"):
		return errors.Wrapf(common.ErrDeserialization, "can't unmarshal plain text %q", string(body))
	default:
		return errors.Wrapf(common.ErrDeserialization, "unsupported content type: %s, contents: %v", contentType, string(body))
	}
}

type result struct {
	resp *HttpResponse
	err  error
}

func (h *Client) request(ctx context.Context, reqOptions RequestOptions) (*HttpResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	start := time.Now()
	req := fasthttp.AcquireRequest()

	req.Header.SetMethod(reqOptions.method)
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range reqOptions.Header {
		req.Header.Set(k, v)
	}

	parsedUrl := h.BaseURL()
	parsedUrl.Path = path.Join(parsedUrl.Path, reqOptions.path)
	if strings.HasSuffix(reqOptions.path, "/") && !strings.HasSuffix(parsedUrl.Path, "/") {
		parsedUrl.Path += "/"
	}
	parsedUrl.RawQuery = reqOptions.Query.Encode()
	url := parsedUrl.String()
	req.SetRequestURI(url)
	if reqOptions.Body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(reqOptions.Body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = start.Add(h.Timeout)
	}

	// fasthttp 只认 deadline, 取消由 select 处理, req/resp 归 goroutine 释放
	done := make(chan result, 1)
	go func() {
		resp := fasthttp.AcquireResponse()
		defer func() {
			fasthttp.ReleaseResponse(resp)
			fasthttp.ReleaseRequest(req)
		}()

		err := h.client.DoDeadline(req, resp, deadline)

		if h.Debug {
			logger.WithFields(logger.Fields{
				"method":      reqOptions.method,
				"url":         url,
				"duration":    time.Since(start),
				"status_code": resp.StatusCode(),
				"resp_size":   len(resp.Body()),
			}).Debug("Finished make request")
		}

		if err != nil {
			done <- result{err: errors.Mark(errors.Wrapf(err, "%s %s", reqOptions.method, url), common.ErrNetwork)}
			return
		}
		httpResponse := &HttpResponse{
			URL: url,
		}
		resp.CopyTo(&httpResponse.Response)
		done <- result{resp: httpResponse}
	}()

	select {
	case <-ctx.Done():
		err := errors.Wrapf(ctx.Err(), "%s %s", reqOptions.method, url)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errors.Mark(err, common.ErrNetwork)
		}
		return nil, err
	case r := <-done:
		return r.resp, r.err
	}
}

// BaseURL returns the cloned base URL of the client.
func (h *Client) BaseURL() *url.URL {
	u := *h.baseURL
	return &u
}

func (h *Client) Get(ctx context.Context, path string, reqOptions RequestOptions) (*HttpResponse, error) {
	reqOptions.path = path
	reqOptions.method = fasthttp.MethodGet
	return h.request(ctx, reqOptions)
}

func (h *Client) Post(ctx context.Context, path string, reqOptions RequestOptions) (*HttpResponse, error) {
	reqOptions.path = path
	reqOptions.method = fasthttp.MethodPost
	return h.request(ctx, reqOptions)
}

// GetJSON issues a GET and decodes a 2xx JSON body into out. Other
// statuses fail with ErrNotFound (404) or ErrNetwork.
func (h *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := h.Get(ctx, path, RequestOptions{Query: query})
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

// PostJSON marshals in, POSTs it and decodes a 2xx JSON body into out.
func (h *Client) PostJSON(ctx context.Context, path string, in any, header map[string]string, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "can't marshal request body")
	}
	resp, err := h.Post(ctx, path, RequestOptions{Body: body, Header: header})
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *HttpResponse, out any) error {
	if !resp.IsSuccess() {
		kind := common.ErrNetwork
		if resp.StatusCode() == fasthttp.StatusNotFound {
			kind = common.ErrNotFound
		}
		return errors.Wrapf(kind, "%s: status %d: %s", resp.URL, resp.StatusCode(), truncate(string(resp.Body()), 512))
	}
	return resp.UnmarshalBody(out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
