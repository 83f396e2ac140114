package zonesync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"

	"bunny-dns-sync/internal/zonesync"
)

// zoneResolver is the part of the syncer needed to look zones up.
type zoneResolver interface {
	ResolveZone(ctx context.Context, name string) (string, error)
}

// resolveHostZone finds the provider zone owning host. Candidates are tried
// from the registrable domain up to the full host name; the first zone the
// provider knows wins.
func resolveHostZone(ctx context.Context, r zoneResolver, host string) (string, string, error) {
	clean := sanitizeCandidateHost(host)
	if clean == "" {
		return "", "", errors.New("host is required to resolve zone")
	}
	for _, candidate := range zoneCandidates(clean) {
		id, err := r.ResolveZone(ctx, candidate)
		if err == nil {
			return candidate, id, nil
		}
		if !zonesync.IsNotFound(err) {
			return "", "", err
		}
	}
	return "", "", fmt.Errorf("no provider zone matches host %s: %w", clean, zonesync.ErrNotFound)
}

func sanitizeCandidateHost(host string) string {
	value := strings.TrimSpace(strings.ToLower(host))
	value = strings.Trim(value, ".")
	value = strings.TrimPrefix(value, "www.")
	return value
}

func zoneCandidates(host string) []string {
	seen := make(map[string]struct{})
	var candidates []string

	if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		addZoneCandidate(&candidates, seen, etld)
	}

	// Deeper delegations after the registrable domain, most specific last.
	labels := strings.Split(host, ".")
	for i := len(labels) - 2; i >= 0; i-- {
		candidate := strings.Join(labels[i:], ".")
		if suffix, _ := publicsuffix.PublicSuffix(candidate); suffix == candidate {
			continue
		}
		addZoneCandidate(&candidates, seen, candidate)
	}
	return candidates
}

func addZoneCandidate(list *[]string, seen map[string]struct{}, candidate string) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return
	}
	if _, exists := seen[candidate]; exists {
		return
	}
	seen[candidate] = struct{}{}
	*list = append(*list, candidate)
}
