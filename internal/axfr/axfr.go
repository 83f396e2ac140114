// Package axfr reads local zones either by zone transfer from the local
// nameserver or straight from zone files. Both render records in the
// "name ttl class type rdata" presentation format.
package axfr

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/miekg/dns"
	"github.com/spf13/afero"

	"bunny-dns-sync/internal/zonesync"
)

// DefaultTimeout bounds a whole zone transfer, dial included.
const DefaultTimeout = 60 * time.Second

// Client transfers zones from an authoritative nameserver.
type Client struct {
	server  string
	timeout time.Duration
}

// NewClient returns a Client for server, which may omit the port.
func NewClient(server string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{server: withPort(server), timeout: timeout}
}

func withPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, "53")
}

// Lines implements zonesync.ZoneSource. The whole transfer, dial included,
// must finish within the client timeout or the deadline of ctx.
func (c *Client) Lines(ctx context.Context, zone string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	m := new(dns.Msg)
	m.SetAxfr(dns.Fqdn(zone))
	op := "axfr " + zone + " from " + c.server

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", c.server)
	if err != nil {
		return nil, &zonesync.TransportError{Op: op, Err: err}
	}
	conn := &dns.Conn{Conn: raw}
	// closing the connection unblocks a read that keeps receiving data
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	t := &dns.Transfer{Conn: conn, ReadTimeout: c.timeout, WriteTimeout: c.timeout}
	envelopes, err := t.In(m, c.server)
	if err != nil {
		return nil, &zonesync.TransportError{Op: op, Err: transferCause(ctx, err)}
	}

	var lines []string
	var transferErr error
	for env := range envelopes {
		// keep draining so the transfer goroutine can finish
		if transferErr != nil {
			continue
		}
		if env.Error != nil {
			transferErr = env.Error
			continue
		}
		if err := ctx.Err(); err != nil {
			transferErr = err
			continue
		}
		for _, rr := range env.RR {
			lines = append(lines, rr.String())
		}
	}
	if transferErr != nil {
		return nil, &zonesync.TransportError{Op: op, Err: transferCause(ctx, transferErr)}
	}
	if len(lines) == 0 {
		return nil, &zonesync.TransportError{Op: op, Err: fmt.Errorf("empty transfer")}
	}
	return lines, nil
}

// transferCause reports the expired deadline instead of the read error that
// closing the connection produced.
func transferCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// FileSource reads zones from <dir>/<zone><ext> files.
type FileSource struct {
	fs  afero.Fs
	dir string
	ext string
}

// NewFileSource returns a FileSource. A nil fs means the OS filesystem.
func NewFileSource(fs afero.Fs, dir, ext string) *FileSource {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if ext == "" {
		ext = ".db"
	}
	return &FileSource{fs: fs, dir: dir, ext: ext}
}

// Lines implements zonesync.ZoneSource.
func (s *FileSource) Lines(_ context.Context, zone string) ([]string, error) {
	path := filepath.Join(s.dir, zone+s.ext)
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zone file: %w", err)
	}
	defer f.Close()

	zp := dns.NewZoneParser(f, dns.Fqdn(zone), path)
	var lines []string
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		lines = append(lines, rr.String())
	}
	if err := zp.Err(); err != nil {
		return nil, fmt.Errorf("parse zone file %s: %w", path, err)
	}
	return lines, nil
}
