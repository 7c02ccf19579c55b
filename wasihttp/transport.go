package wasihttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const bodyChunkSize = 32 * 1024

// Transport implements http.RoundTripper over a Client, so net/http code
// can run unmodified inside the guest.
type Transport struct {
	client *Client
}

func NewTransport(c *Client) *Transport {
	return &Transport{client: c}
}

// RoundTrip sends req and returns a response whose body streams from the
// host. Closing the body releases the stream and response handles.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.client
	ctx := req.Context()
	exchange := uuid.New()
	log := c.logger.With(zap.String("exchange", exchange.String()))

	if req.Body != nil {
		defer req.Body.Close()
	}

	fields, err := c.NewFields(headerPairs(req.Header))
	if err != nil {
		return nil, err
	}

	authority := req.Host
	if authority == "" {
		authority = req.URL.Host
	}
	path := req.URL.EscapedPath()
	if path == "" {
		path = "/"
	}

	out, err := c.NewOutgoingRequest(RequestSpec{
		Method:    ParseMethod(req.Method),
		Path:      path,
		Query:     req.URL.RawQuery,
		Scheme:    ParseScheme(req.URL.Scheme),
		Authority: authority,
		Headers:   fields,
	})
	if err != nil {
		if fields.Live() {
			_ = fields.Drop()
		}
		return nil, err
	}

	if req.Body != nil && req.Body != http.NoBody {
		if err := sendBody(ctx, out, req.Body); err != nil {
			_ = out.Drop()
			return nil, err
		}
	}

	log.Debug("submitting", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	future, err := c.Submit(ctx, out)
	if err != nil {
		if out.Live() {
			_ = out.Drop()
		}
		return nil, err
	}

	resp, err := future.Resolve(ctx)
	if err != nil {
		if future.Live() {
			_ = future.Drop()
		}
		log.Debug("exchange failed", zap.Error(err))
		return nil, err
	}

	httpResp, err := toHTTPResponse(ctx, req, resp)
	if err != nil {
		_ = resp.Drop()
		return nil, err
	}
	log.Debug("response", zap.Int("status", httpResp.StatusCode))
	return httpResp, nil
}

// headerPairs flattens h into pairs with names in sorted order.
func headerPairs(h http.Header) []FieldPair {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var pairs []FieldPair
	for _, name := range names {
		for _, v := range h[name] {
			pairs = append(pairs, FieldPair{Name: []byte(name), Value: []byte(v)})
		}
	}
	return pairs
}

func sendBody(ctx context.Context, req *OutgoingRequest, body io.Reader) error {
	stream, err := req.Write()
	if err != nil {
		return err
	}
	buf := make([]byte, bodyChunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if err := stream.WriteAll(ctx, buf[:n]); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			return stream.Close()
		}
		if rerr != nil {
			return fmt.Errorf("read request body: %w", rerr)
		}
	}
}

func toHTTPResponse(ctx context.Context, req *http.Request, resp *IncomingResponse) (*http.Response, error) {
	status, err := resp.Status()
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	fields, err := resp.Headers()
	if err != nil {
		return nil, err
	}
	entries, err := fields.Entries()
	_ = fields.Drop()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		header.Add(string(e.Name), string(e.Value))
	}

	stream, err := resp.Consume()
	if err != nil {
		return nil, err
	}

	contentLength := int64(-1)
	if v := header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			contentLength = n
		}
	}

	code := int(status)
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", code, http.StatusText(code)),
		StatusCode:    code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          &responseBody{r: stream.Reader(ctx), stream: stream, resp: resp},
		ContentLength: contentLength,
		Request:       req,
	}, nil
}

type responseBody struct {
	r      io.Reader
	stream *InputStream
	resp   *IncomingResponse
	closed bool
}

func (b *responseBody) Read(p []byte) (int, error) {
	if b.closed {
		return 0, fmt.Errorf("read on closed response body")
	}
	return b.r.Read(p)
}

func (b *responseBody) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.stream.Live() {
		_ = b.stream.Drop()
	}
	if b.resp.Live() {
		_ = b.resp.Drop()
	}
	return nil
}
