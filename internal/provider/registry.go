package provider

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"bunny-dns-sync/internal/logging"
	"bunny-dns-sync/internal/zonesync"
)

// Settings carries the configuration a provider backend may need.
type Settings struct {
	APIKey    string
	APIURL    string
	AccountID string
	Timeout   time.Duration
}

// Factory is a constructor function that providers register to create themselves.
type Factory func(log logging.Logger, settings Settings) (zonesync.Provider, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// Register is called by provider packages in their init() to self-register.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("provider: %q already registered", name))
	}
	factories[name] = f
}

// New looks up the named provider in the registry and creates it.
func New(name string, log logging.Logger, settings Settings) (zonesync.Provider, error) {
	mu.Lock()
	f, ok := factories[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unsupported DNS provider: %q (registered: %v)", name, Names())
	}
	return f(log, settings)
}

// Names lists the registered providers in sorted order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
