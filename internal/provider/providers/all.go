// Package providers imports all DNS provider packages to trigger their init() registration.
package providers

import (
	_ "bunny-dns-sync/internal/provider/bunny"
	_ "bunny-dns-sync/internal/provider/cloudflare"
)
