package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tradmak/aixos/internal/domain"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

// RESTClient talks to the platform's table REST surface. It implements Data.
type RESTClient struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

type RESTConfig struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
}

func NewRESTClient(cfg RESTConfig) *RESTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		http:       &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) Query(ctx context.Context, table string, filter Filter, order *Order, limit int) ([]domain.Row, error) {
	params := url.Values{}
	sel := "*"
	for col, pred := range filter {
		if col == "select" {
			sel = pred
			continue
		}
		params.Set(col, pred)
	}
	params.Set("select", sel)
	if order != nil {
		dir := "asc"
		if order.Desc {
			dir = "desc"
		}
		params.Set("order", order.Column+"."+dir)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, _, err := c.do(ctx, http.MethodGet, table, params, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeRows(body)
}

func (c *RESTClient) Mutate(ctx context.Context, table string, op MutateOp, payload map[string]any, filter Filter) (domain.Row, error) {
	params := url.Values{}
	for col, pred := range filter {
		params.Set(col, pred)
	}

	var method string
	var reqBody io.Reader
	switch op {
	case OpInsert:
		method = http.MethodPost
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(encoded)
	case OpUpdate:
		method = http.MethodPatch
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(encoded)
	case OpDelete:
		method = http.MethodDelete
	default:
		return nil, aixos_errors.ErrInvalidInput
	}

	headers := map[string]string{"Prefer": "return=representation"}
	body, _, err := c.do(ctx, method, table, params, reqBody, headers)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(body)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (c *RESTClient) Count(ctx context.Context, table string, filter Filter) (int64, error) {
	params := url.Values{}
	for col, pred := range filter {
		params.Set(col, pred)
	}
	params.Set("select", "*")

	headers := map[string]string{
		"Prefer": "count=exact",
		"Range":  "0-0",
	}
	_, resp, err := c.do(ctx, http.MethodGet, table, params, nil, headers)
	if err != nil {
		return 0, err
	}
	// Content-Range: 0-0/123
	cr := resp.Header.Get("Content-Range")
	if idx := strings.LastIndex(cr, "/"); idx >= 0 {
		if n, perr := strconv.ParseInt(cr[idx+1:], 10, 64); perr == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("count on %s: unparseable content range %q", table, cr)
}

func (c *RESTClient) RPC(ctx context.Context, fn string, args map[string]any) (json.RawMessage, error) {
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	body, _, err := c.do(ctx, http.MethodPost, "rpc/"+fn, nil, bytes.NewReader(encoded), nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, params url.Values, body io.Reader, headers map[string]string) ([]byte, *http.Response, error) {
	endpoint := c.baseURL + "/" + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, resp, aixos_errors.ErrAuthExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp, &QueryError{Table: path, Status: resp.StatusCode, Body: string(data)}
	}
	return data, resp, nil
}

// decodeRows accepts either a JSON array or a single object. Numbers are
// kept as json.Number so numeric ids survive round-tripping.
func decodeRows(data []byte) ([]domain.Row, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if trimmed[0] == '[' {
		var rows []domain.Row
		if err := dec.Decode(&rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var row domain.Row
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return []domain.Row{row}, nil
}
