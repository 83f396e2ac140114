package bunny

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bunny-dns-sync/internal/logging"
	"bunny-dns-sync/internal/provider"
	"bunny-dns-sync/internal/zonesync"
)

const (
	// DefaultAPIURL is the public BunnyCDN API endpoint.
	DefaultAPIURL = "https://api.bunny.net"
	// DefaultTimeout bounds every API call; the API has no server side limit
	// that would stop a hung connection.
	DefaultTimeout = 30 * time.Second

	pageSize     = 100
	maxErrorBody = 4096
)

func init() {
	provider.Register("bunny", func(log logging.Logger, s provider.Settings) (zonesync.Provider, error) {
		return New(log, s)
	})
}

// Client implements zonesync.Provider for BunnyCDN DNS.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     logging.Logger
	tracer  trace.Tracer
}

// New creates a Bunny DNS client. APIKey is required; APIURL and Timeout
// fall back to the defaults.
func New(log logging.Logger, s provider.Settings) (*Client, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, errors.New("bunny: missing required setting 'api_key'")
	}
	baseURL := s.APIURL
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("bunny: invalid api_url %q: %w", baseURL, err)
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  s.APIKey,
		client:  &http.Client{Timeout: timeout},
		log:     log,
		tracer:  otel.Tracer("bunny-dns-sync"),
	}, nil
}

type zone struct {
	ID      int64    `json:"Id"`
	Domain  string   `json:"Domain"`
	Records []record `json:"Records,omitempty"`
}

type zoneList struct {
	Items        []zone `json:"Items"`
	CurrentPage  int    `json:"CurrentPage"`
	TotalItems   int    `json:"TotalItems"`
	HasMoreItems bool   `json:"HasMoreItems"`
}

type record struct {
	ID       int64  `json:"Id,omitempty"`
	Type     int    `json:"Type"`
	TTL      *int   `json:"Ttl,omitempty"`
	Name     string `json:"Name"`
	Value    string `json:"Value"`
	Priority *int   `json:"Priority,omitempty"`
	Weight   *int   `json:"Weight,omitempty"`
	Port     *int   `json:"Port,omitempty"`
}

// CreateZone adds a zone and returns its id.
func (c *Client) CreateZone(ctx context.Context, domain string) (string, error) {
	var created zone
	err := c.do(ctx, "create zone", http.MethodPost, "/dnszone", map[string]string{"Domain": domain}, http.StatusCreated, &created)
	if err != nil {
		return "", err
	}
	c.log.Info(ctx, "zone added", "zone", domain, "zone_id", created.ID)
	if created.ID == 0 {
		return "", nil
	}
	return strconv.FormatInt(created.ID, 10), nil
}

// FindZone returns the id of the zone whose domain matches exactly.
func (c *Client) FindZone(ctx context.Context, domain string) (string, error) {
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("perPage", strconv.Itoa(pageSize))
		q.Set("search", domain)

		var list zoneList
		if err := c.do(ctx, "find zone", http.MethodGet, "/dnszone?"+q.Encode(), nil, http.StatusOK, &list); err != nil {
			return "", err
		}
		for _, z := range list.Items {
			if z.Domain == domain {
				return strconv.FormatInt(z.ID, 10), nil
			}
		}
		if !list.HasMoreItems || len(list.Items) == 0 {
			return "", zonesync.ErrNotFound
		}
	}
}

// DeleteZone removes a zone and all its records.
func (c *Client) DeleteZone(ctx context.Context, zoneID string) error {
	return c.do(ctx, "delete zone", http.MethodDelete, "/dnszone/"+url.PathEscape(zoneID), nil, http.StatusNoContent, nil)
}

// ListRecords returns the records of a zone.
func (c *Client) ListRecords(ctx context.Context, zoneID string) ([]zonesync.RemoteRecord, error) {
	var z zone
	if err := c.do(ctx, "list records", http.MethodGet, "/dnszone/"+url.PathEscape(zoneID), nil, http.StatusOK, &z); err != nil {
		return nil, err
	}
	out := make([]zonesync.RemoteRecord, 0, len(z.Records))
	for _, r := range z.Records {
		out = append(out, zonesync.RemoteRecord{
			ID:       strconv.FormatInt(r.ID, 10),
			Name:     r.Name,
			TTL:      r.TTL,
			Type:     zonesync.TypeCode(r.Type),
			Value:    r.Value,
			Priority: r.Priority,
			Weight:   r.Weight,
			Port:     r.Port,
		})
	}
	return out, nil
}

// DeleteRecord removes a single record.
func (c *Client) DeleteRecord(ctx context.Context, zoneID, recordID string) error {
	path := "/dnszone/" + url.PathEscape(zoneID) + "/records/" + url.PathEscape(recordID)
	return c.do(ctx, "delete record", http.MethodDelete, path, nil, http.StatusNoContent, nil)
}

// AddRecord adds a single record. Types without a Bunny code are rejected
// before any request is made.
func (c *Client) AddRecord(ctx context.Context, zoneID string, rec zonesync.Record) error {
	code, ok := rec.Type.Code()
	if !ok {
		return &zonesync.StatusError{Op: "add record", Body: fmt.Sprintf("record type %s is not supported", rec.Type)}
	}
	ttl := rec.TTL
	body := record{
		Type:     int(code),
		TTL:      &ttl,
		Name:     rec.Name,
		Value:    rec.Value,
		Priority: rec.Priority,
		Weight:   rec.Weight,
		Port:     rec.Port,
	}
	return c.do(ctx, "add record", http.MethodPut, "/dnszone/"+url.PathEscape(zoneID)+"/records", body, http.StatusCreated, nil)
}

// do executes one API call and maps the response status onto the zonesync
// error taxonomy. out may be nil when the body is not needed.
func (c *Client) do(ctx context.Context, op, method, path string, body any, want int, out any) error {
	ctx, span := c.tracer.Start(ctx, "bunny."+strings.ReplaceAll(op, " ", "_"), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("bunny: marshal %s request: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("bunny: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("AccessKey", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug(ctx, "bunny request", "method", method, "path", path)
	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return &zonesync.TransportError{Op: "bunny " + op, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.Int("http.status_code", resp.StatusCode),
	)

	if resp.StatusCode != want {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := statusError(op, resp.StatusCode, strings.TrimSpace(string(text)))
		span.RecordError(err)
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("bunny: decode %s response: %w", op, err)
	}
	return nil
}

func statusError(op string, status int, body string) *zonesync.StatusError {
	se := &zonesync.StatusError{Op: "bunny " + op, Status: status, Body: body}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		se.Kind = zonesync.ErrAuth
	case status == http.StatusNotFound:
		se.Kind = zonesync.ErrNotFound
	case status == http.StatusConflict:
		se.Kind = zonesync.ErrConflict
	case status == http.StatusBadRequest && op == "create zone" && strings.Contains(strings.ToLower(body), "already"):
		se.Kind = zonesync.ErrConflict
	}
	return se
}
