package axfr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/spf13/afero"

	"bunny-dns-sync/internal/zonesync"
)

const testZone = `$ORIGIN example.com.
$TTL 3600
@       IN SOA ns1.example.com. hostmaster.example.com. 1 7200 3600 1209600 3600
@       IN NS  ns1.example.com.
@       IN MX  10 mail.example.com.
www 300 IN A   1.2.3.4
@       IN TXT "v=spf1 -all"
_sip._tcp 600 IN SRV 10 20 5060 sip.example.com.
`

func zoneRRs(t *testing.T) []dns.RR {
	t.Helper()
	zp := dns.NewZoneParser(strings.NewReader(testZone), "example.com.", "")
	var rrs []dns.RR
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		rrs = append(rrs, rr)
	}
	if err := zp.Err(); err != nil {
		t.Fatalf("parse test zone: %v", err)
	}
	// AXFR ends with the SOA again.
	return append(rrs, rrs[0])
}

func startServer(t *testing.T, rrs []dns.RR) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	mux := dns.NewServeMux()
	mux.HandleFunc("example.com.", func(w dns.ResponseWriter, r *dns.Msg) {
		ch := make(chan *dns.Envelope)
		tr := new(dns.Transfer)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.Out(w, r, ch)
		}()
		ch <- &dns.Envelope{RR: rrs}
		close(ch)
		wg.Wait()
		w.Hijack()
	})
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, dns.RcodeRefused)
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{Listener: l, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return l.Addr().String()
}

func TestClientLines(t *testing.T) {
	addr := startServer(t, zoneRRs(t))
	c := NewClient(addr, 5*time.Second)

	lines, err := c.Lines(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	records := zonesync.NormalizeLocal(lines, "example.com")

	want := map[string]bool{}
	for _, rec := range []string{
		"www 300 A 1.2.3.4",
		"@ 3600 MX 10 mail.example.com",
		"@ 3600 TXT v=spf1 -all",
		"_sip._tcp 600 SRV 10 20 5060 sip.example.com",
	} {
		want[rec] = false
	}
	for _, rec := range records {
		if _, ok := want[rec.String()]; ok {
			want[rec.String()] = true
		}
	}
	for rec, seen := range want {
		if !seen {
			t.Errorf("record %q missing from transfer: %v", rec, lines)
		}
	}
}

func TestClientRefused(t *testing.T) {
	addr := startServer(t, zoneRRs(t))
	c := NewClient(addr, 5*time.Second)

	_, err := c.Lines(context.Background(), "other.org")
	if !zonesync.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

// startTrickleServer answers every AXFR with an endless stream of small
// messages, one per interval, so no single read ever times out.
func startTrickleServer(t *testing.T, interval time.Duration) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		_ = l.Close()
	})
	soa, err := dns.NewRR("example.com. 3600 IN SOA ns1.example.com. hostmaster.example.com. 1 7200 3600 1209600 3600")
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		raw, err := l.Accept()
		if err != nil {
			return
		}
		conn := &dns.Conn{Conn: raw}
		defer conn.Close()
		q, err := conn.ReadMsg()
		if err != nil {
			return
		}
		for i := 0; ; i++ {
			m := new(dns.Msg)
			m.SetReply(q)
			if i == 0 {
				m.Answer = append(m.Answer, soa)
			}
			a, _ := dns.NewRR(fmt.Sprintf("h%d.example.com. 300 IN A 10.0.0.1", i))
			m.Answer = append(m.Answer, a)
			if err := conn.WriteMsg(m); err != nil {
				return
			}
			select {
			case <-done:
				return
			case <-time.After(interval):
			}
		}
	}()
	return l.Addr().String()
}

func TestClientTransferDeadline(t *testing.T) {
	addr := startTrickleServer(t, 20*time.Millisecond)
	c := NewClient(addr, 300*time.Millisecond)

	start := time.Now()
	_, err := c.Lines(context.Background(), "example.com")
	elapsed := time.Since(start)

	if !zonesync.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed > 5*time.Second {
		t.Fatalf("transfer ran for %s past a 300ms timeout", elapsed)
	}
}

func TestClientCanceledContext(t *testing.T) {
	addr := startTrickleServer(t, 20*time.Millisecond)
	c := NewClient(addr, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	_, err := c.Lines(ctx, "example.com")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled transfer, got %v", err)
	}
}

func TestWithPort(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1":      "127.0.0.1:53",
		"127.0.0.1:5353": "127.0.0.1:5353",
		"::1":            "[::1]:53",
		"ns.local":       "ns.local:53",
	}
	for in, want := range tests {
		if got := withPort(in); got != want {
			t.Errorf("withPort(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/zones/example.com.db", []byte(testZone), 0o644); err != nil {
		t.Fatal(err)
	}
	src := NewFileSource(fs, "/zones", "")

	lines, err := src.Lines(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	records := zonesync.NormalizeLocal(lines, "example.com")
	if len(records) != 6 {
		t.Fatalf("expected 6 records, got %d: %v", len(records), lines)
	}
	if records[3].String() != "www 300 A 1.2.3.4" {
		t.Fatalf("unexpected record %q", records[3].String())
	}

	if _, err := src.Lines(context.Background(), "missing.com"); err == nil {
		t.Fatalf("expected error for missing zone file")
	}
}
