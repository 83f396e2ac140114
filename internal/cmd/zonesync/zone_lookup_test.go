package zonesync

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"bunny-dns-sync/internal/zonesync"
)

func TestZoneCandidates(t *testing.T) {
	tests := []struct {
		host string
		want []string
	}{
		{"example.com", []string{"example.com"}},
		{"a.b.example.com", []string{"example.com", "b.example.com", "a.b.example.com"}},
		{"shop.example.co.uk", []string{"example.co.uk", "shop.example.co.uk"}},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got := zoneCandidates(tt.host)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("zoneCandidates(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestSanitizeCandidateHost(t *testing.T) {
	if got := sanitizeCandidateHost("  WWW.Example.COM. "); got != "example.com" {
		t.Fatalf("unexpected host %q", got)
	}
}

type fakeResolver struct {
	zones map[string]string
	err   error
	asked []string
}

func (f *fakeResolver) ResolveZone(_ context.Context, name string) (string, error) {
	f.asked = append(f.asked, name)
	if f.err != nil {
		return "", f.err
	}
	if id, ok := f.zones[name]; ok {
		return id, nil
	}
	return "", zonesync.ErrNotFound
}

func TestResolveHostZone(t *testing.T) {
	r := &fakeResolver{zones: map[string]string{"b.example.com": "42"}}
	zone, id, err := resolveHostZone(context.Background(), r, "www.a.b.example.com")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if zone != "b.example.com" || id != "42" {
		t.Fatalf("got %s %s", zone, id)
	}
	if !reflect.DeepEqual(r.asked, []string{"example.com", "b.example.com"}) {
		t.Fatalf("unexpected lookups %v", r.asked)
	}

	if _, _, err := resolveHostZone(context.Background(), &fakeResolver{}, "nothing.org"); !zonesync.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	authErr := &fakeResolver{err: zonesync.ErrAuth}
	if _, _, err := resolveHostZone(context.Background(), authErr, "x.example.com"); !errors.Is(err, zonesync.ErrAuth) {
		t.Fatalf("auth errors must stop the walk, got %v", err)
	}
	if len(authErr.asked) != 1 {
		t.Fatalf("expected one lookup, got %v", authErr.asked)
	}
}
