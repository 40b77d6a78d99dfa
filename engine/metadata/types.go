package metadata

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/config"
)

// Role fixes a provider's place in the merge precedence.
type Role int

const (
	// RolePrimary is the catalog provider: title, artist, album and cover.
	RolePrimary Role = iota
	// RoleDetail is the community database: year, genre, credits, ISRC.
	RoleDetail
	// RoleStorefront fills whatever is still missing.
	RoleStorefront
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleDetail:
		return "detail"
	case RoleStorefront:
		return "storefront"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Query is what the caller is looking for.
type Query struct {
	Artist string
	Title  string
	Album  string
}

// ProviderResult is one candidate returned by a provider.
type ProviderResult struct {
	Provider    string
	Role        Role
	Title       string
	Artists     []string
	Album       string
	Year        int
	Genre       string
	TrackNumber int
	DiscNumber  int
	AlbumArtist string
	Composer    string
	ISRC        string
	CoverArtURL string
	Score       float64
}

// Provider is a metadata source.
type Provider interface {
	Name() string
	Role() Role
	// Phrasings returns the search strings to try for q, most specific first.
	Phrasings(q Query) []string
	Search(ctx context.Context, phrase string) ([]ProviderResult, error)
}

// AlbumCoverFinder is implemented by providers that can look up artwork by album.
type AlbumCoverFinder interface {
	FindAlbumCover(ctx context.Context, artist, album string) (string, error)
}

// LyricsProvider is a lyrics source. Lower Rank is preferred.
type LyricsProvider interface {
	Name() string
	Rank() int
	Lyrics(ctx context.Context, artist, title string) (string, error)
}

// Deps is what a provider factory receives.
type Deps struct {
	Config     *config.Config
	Logger     engine.Logger
	HTTPClient *http.Client
	UserAgent  string
}

// Contribution describes what a provider package supplies. Either field may be nil.
type Contribution struct {
	Metadata Provider
	Lyrics   LyricsProvider
}

// Factory builds a contribution. Returning (nil, nil) disables the provider.
type Factory func(deps Deps) (*Contribution, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register registers a provider factory by name.
func Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("provider name required")
	}
	if factory == nil {
		return fmt.Errorf("provider factory required")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	factories[name] = factory
	return nil
}

// Get returns a registered factory by name.
func Get(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	factory, ok := factories[name]
	return factory, ok
}

// Names returns all registered provider names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates every registered provider that is enabled in cfg. A
// provider is enabled unless its section sets enabled = false.
func Build(deps Deps) ([]Provider, []LyricsProvider, error) {
	var (
		providers []Provider
		lyrics    []LyricsProvider
	)
	for _, name := range Names() {
		if deps.Config != nil && !deps.Config.GetProviderBool(name, "enabled", true) {
			continue
		}
		factory, _ := Get(name)
		pdeps := deps
		if deps.Logger != nil {
			pdeps.Logger = deps.Logger.With("provider", name)
		}
		contrib, err := factory(pdeps)
		if err != nil {
			return nil, nil, fmt.Errorf("build provider %s: %w", name, err)
		}
		if contrib == nil {
			if deps.Logger != nil {
				deps.Logger.Debug("provider disabled", "provider", name)
			}
			continue
		}
		if contrib.Metadata != nil {
			providers = append(providers, contrib.Metadata)
		}
		if contrib.Lyrics != nil {
			lyrics = append(lyrics, contrib.Lyrics)
		}
	}
	return providers, lyrics, nil
}
