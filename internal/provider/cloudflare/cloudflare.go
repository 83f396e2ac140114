package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	cf "github.com/cloudflare/cloudflare-go"

	"bunny-dns-sync/internal/logging"
	"bunny-dns-sync/internal/provider"
	"bunny-dns-sync/internal/zonesync"
)

func init() {
	provider.Register("cloudflare", func(log logging.Logger, s provider.Settings) (zonesync.Provider, error) {
		return New(log, s)
	})
}

// api is the subset of the Cloudflare client used here.
type api interface {
	ListZones(ctx context.Context, z ...string) ([]cf.Zone, error)
	CreateZone(ctx context.Context, name string, jumpstart bool, account cf.Account, zoneType string) (cf.Zone, error)
	DeleteZone(ctx context.Context, zoneID string) (cf.ZoneID, error)
	ListDNSRecords(ctx context.Context, rc *cf.ResourceContainer, params cf.ListDNSRecordsParams) ([]cf.DNSRecord, *cf.ResultInfo, error)
	CreateDNSRecord(ctx context.Context, rc *cf.ResourceContainer, params cf.CreateDNSRecordParams) (cf.DNSRecord, error)
	DeleteDNSRecord(ctx context.Context, rc *cf.ResourceContainer, recordID string) error
}

// Client implements zonesync.Provider on top of the Cloudflare API.
type Client struct {
	api       api
	accountID string
	log       logging.Logger
	// zone id to zone name, needed to turn FQDN record names into relative ones
	names map[string]string
}

// New instantiates a Client using an API token.
func New(log logging.Logger, s provider.Settings) (*Client, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, errors.New("cloudflare token is required")
	}
	opts := []cf.Option{}
	if s.Timeout > 0 {
		opts = append(opts, cf.HTTPClient(&http.Client{Timeout: s.Timeout}))
	}
	if s.APIURL != "" {
		opts = append(opts, cf.BaseURL(s.APIURL))
	}
	client, err := cf.NewWithAPIToken(s.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("init cloudflare client: %w", err)
	}
	return newWithAPI(log, client, s.AccountID), nil
}

func newWithAPI(log logging.Logger, a api, accountID string) *Client {
	if log == nil {
		log = logging.Discard()
	}
	return &Client{api: a, accountID: accountID, log: log, names: map[string]string{}}
}

func (c *Client) CreateZone(ctx context.Context, domain string) (string, error) {
	zone, err := c.api.CreateZone(ctx, domain, false, cf.Account{ID: c.accountID}, "full")
	if err != nil {
		return "", mapError("create zone", err)
	}
	c.names[zone.ID] = zone.Name
	return zone.ID, nil
}

func (c *Client) FindZone(ctx context.Context, domain string) (string, error) {
	zones, err := c.api.ListZones(ctx, domain)
	if err != nil {
		return "", mapError("find zone", err)
	}
	for _, z := range zones {
		if z.Name == domain {
			c.names[z.ID] = z.Name
			return z.ID, nil
		}
	}
	return "", zonesync.ErrNotFound
}

func (c *Client) DeleteZone(ctx context.Context, zoneID string) error {
	if _, err := c.api.DeleteZone(ctx, zoneID); err != nil {
		return mapError("delete zone", err)
	}
	delete(c.names, zoneID)
	return nil
}

// ListRecords pages through every record of the zone. Record types outside
// the shared type table cannot be compared and are left alone.
func (c *Client) ListRecords(ctx context.Context, zoneID string) ([]zonesync.RemoteRecord, error) {
	rc := cf.ZoneIdentifier(zoneID)
	params := cf.ListDNSRecordsParams{}
	params.ResultInfo.PerPage = 500
	var all []zonesync.RemoteRecord
	for {
		records, info, err := c.api.ListDNSRecords(ctx, rc, params)
		if err != nil {
			return nil, mapError("list records", err)
		}
		for _, rec := range records {
			remote, ok := c.fromAPIRecord(rec)
			if !ok {
				c.log.Debug(ctx, "skipping record with unsupported type", "type", rec.Type, "name", rec.Name)
				continue
			}
			all = append(all, remote)
		}
		if info == nil || info.Page >= info.TotalPages || info.TotalPages == 0 {
			break
		}
		params.ResultInfo.Page = info.Page + 1
		params.ResultInfo.PerPage = info.PerPage
	}
	return all, nil
}

func (c *Client) DeleteRecord(ctx context.Context, zoneID, recordID string) error {
	if err := c.api.DeleteDNSRecord(ctx, cf.ZoneIdentifier(zoneID), recordID); err != nil {
		return mapError("delete record", err)
	}
	return nil
}

func (c *Client) AddRecord(ctx context.Context, zoneID string, rec zonesync.Record) error {
	if rec.Type.IsUnmapped() {
		return &zonesync.StatusError{Op: "add record", Body: fmt.Sprintf("record type %s is not supported", rec.Type)}
	}
	if _, err := c.api.CreateDNSRecord(ctx, cf.ZoneIdentifier(zoneID), c.toCreateParams(zoneID, rec)); err != nil {
		return mapError("add record", err)
	}
	return nil
}

func (c *Client) toCreateParams(zoneID string, rec zonesync.Record) cf.CreateDNSRecordParams {
	name := rec.Name
	if name == "" {
		name = c.names[zoneID]
		if name == "" {
			name = "@"
		}
	}
	params := cf.CreateDNSRecordParams{
		Type:    rec.Type.String(),
		Name:    name,
		Content: rec.Value,
		TTL:     rec.TTL,
	}
	if rec.Priority != nil {
		p := uint16(*rec.Priority)
		params.Priority = &p
	}
	if rec.Type.Is(zonesync.CodeSRV) {
		data := map[string]any{"target": rec.Value}
		if rec.Priority != nil {
			data["priority"] = *rec.Priority
		}
		if rec.Weight != nil {
			data["weight"] = *rec.Weight
		}
		if rec.Port != nil {
			data["port"] = *rec.Port
		}
		params.Data = data
		params.Content = ""
	}
	return params
}

func (c *Client) fromAPIRecord(rec cf.DNSRecord) (zonesync.RemoteRecord, bool) {
	code, ok := zonesync.ParseType(rec.Type).Code()
	if !ok {
		return zonesync.RemoteRecord{}, false
	}
	zoneName := rec.ZoneName
	if zoneName == "" {
		zoneName = c.names[rec.ZoneID]
	}
	ttl := rec.TTL
	out := zonesync.RemoteRecord{
		ID:    rec.ID,
		Name:  relativeName(rec.Name, zoneName),
		TTL:   &ttl,
		Type:  code,
		Value: strings.TrimSuffix(rec.Content, "."),
	}
	if rec.Priority != nil {
		out.Priority = zonesync.IntPtr(int(*rec.Priority))
	}
	if code == zonesync.CodeSRV {
		if data, ok := rec.Data.(map[string]any); ok {
			out.Priority = dataInt(data, "priority", out.Priority)
			out.Weight = dataInt(data, "weight", nil)
			out.Port = dataInt(data, "port", nil)
			if target, ok := data["target"].(string); ok {
				out.Value = strings.TrimSuffix(target, ".")
			}
		}
	}
	return out, true
}

func relativeName(name, zone string) string {
	name = strings.TrimSuffix(name, ".")
	if zone == "" {
		return name
	}
	if name == zone {
		return ""
	}
	return strings.TrimSuffix(name, "."+zone)
}

func dataInt(data map[string]any, key string, fallback *int) *int {
	switch v := data[key].(type) {
	case float64:
		return zonesync.IntPtr(int(v))
	case int:
		return zonesync.IntPtr(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return zonesync.IntPtr(n)
		}
	}
	return fallback
}

// typedError matches the Cloudflare error types that classify themselves.
type typedError interface {
	error
	Type() cf.ErrorType
}

func mapError(op string, err error) error {
	se := &zonesync.StatusError{Op: "cloudflare " + op, Body: err.Error()}
	var typed typedError
	if errors.As(err, &typed) {
		switch typed.Type() {
		case cf.ErrorTypeAuthentication, cf.ErrorTypeAuthorization:
			se.Kind, se.Status = zonesync.ErrAuth, http.StatusForbidden
		case cf.ErrorTypeNotFound:
			se.Kind, se.Status = zonesync.ErrNotFound, http.StatusNotFound
		case cf.ErrorTypeRequest:
			se.Status = http.StatusBadRequest
		case cf.ErrorTypeRateLimit:
			se.Status = http.StatusTooManyRequests
		case cf.ErrorTypeService:
			se.Status = http.StatusInternalServerError
		}
	}
	if op == "create zone" && strings.Contains(strings.ToLower(err.Error()), "already exists") {
		se.Kind = zonesync.ErrConflict
	}
	if se.Kind == nil && se.Status == 0 {
		return &zonesync.TransportError{Op: "cloudflare " + op, Err: err}
	}
	return se
}
