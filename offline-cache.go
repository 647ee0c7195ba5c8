package offlinecache

import (
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/offline-cache/offline-cache/cache"
	cachename "github.com/offline-cache/offline-cache/pkg/cache-name"

	"github.com/rs/zerolog"
)

// Cache roles. Each role maps to exactly one named cache per version.
const (
	RoleStatic  = "static"
	RoleDynamic = "dynamic"
	RoleImages  = "images"
)

// DefaultLimits caps the entry count of the caches that grow per request.
// The static cache is bounded by the precache manifest and has no limit.
var DefaultLimits = map[string]int{
	RoleDynamic: 50,
	RoleImages:  60,
}

type Config struct {
	// Storage for cache entries. An in-memory store is used if nil.
	Cache cache.CacheProvider
	// Transport used for network fetches.
	// http.DefaultTransport is used if nil.
	Transport http.RoundTripper
	// URL of the origin the engine caches for.
	// Requests to any other origin are passed through untouched.
	OriginURL url.URL
	// Cache version. Changes exactly once per deployable build;
	// entries cached under other versions are purged on activation.
	Version string
	// Path prefix routed to the network-first strategy. Defaults to "/api/".
	APIPrefix string
	// Paths fetched into the static cache during Install.
	PrecachePaths []string
	// Path of the pre-cached page served when both network and cache fail.
	FallbackPath string
	// Per-role entry count ceilings. DefaultLimits is used if nil.
	// A ceiling of zero or below means unlimited.
	Limits map[string]int
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Optional hook called when a background revalidation settles.
	// Use it in tests to await stale-while-revalidate completion
	// deterministically.
	OnRevalidate func(key string, err error)
}

// Engine decides per request whether to serve from the local store, fetch
// fresh, or do both and reconcile in the background.
// It implements http.RoundTripper so it can be plugged in wherever outgoing
// requests can be intercepted, e.g. as a reverse proxy transport or an
// http.Client transport.
type Engine struct {
	cache        cache.CacheProvider
	transport    http.RoundTripper
	namer        cachename.Namer
	rules        []rule
	limits       map[string]int
	originURL    url.URL
	apiPrefix    string
	precache     []string
	fallbackPath string
	onRevalidate func(key string, err error)
	log          zerolog.Logger

	stateMutex sync.Mutex
	state      State
}

// New initializes the engine. The engine starts in the Installing state;
// call Install and Activate (or wire up HandleMessage) to advance it.
func New(config Config) *Engine {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	version := config.Version
	if version == "" {
		version = "v1"
	}
	apiPrefix := config.APIPrefix
	if apiPrefix == "" {
		apiPrefix = "/api/"
	}
	limits := config.Limits
	if limits == nil {
		limits = DefaultLimits
	}
	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	provider := config.Cache
	if provider == nil {
		provider = cache.NewMemCache()
	}

	// create a child logger and add defaults
	logger = logger.With().
		Str("version", version).
		Logger()

	e := &Engine{
		cache:     provider,
		transport: transport,
		namer: cachename.Namer{
			Version: version,
			Roles:   []string{RoleStatic, RoleDynamic, RoleImages},
		},
		limits:       limits,
		originURL:    config.OriginURL,
		apiPrefix:    apiPrefix,
		precache:     config.PrecachePaths,
		fallbackPath: config.FallbackPath,
		onRevalidate: config.OnRevalidate,
		log:          logger,
		state:        StateInstalling,
	}
	e.rules = engineRules()
	return e
}

// RoundTrip implements http.RoundTripper.
// It classifies the request and delegates to the matching strategy.
// Only GET requests enter the rule table; entries are idempotent
// representations of a URL, so everything else goes straight to the network.
func (e *Engine) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Method != http.MethodGet {
		return e.transport.RoundTrip(r)
	}
	ru := e.classify(r)
	if ru.execute == nil {
		e.log.Trace().Str("url", r.URL.String()).Msg("Passing through")
		return e.transport.RoundTrip(r)
	}
	res, err := ru.execute(e, r, ru.role)
	if err == nil && res != nil {
		e.logRequest(r, ru, res)
	}
	return res, err
}

func (e *Engine) logRequest(r *http.Request, ru rule, res *http.Response) {
	isHit := 0
	if strings.Contains(res.Header.Get("Cache-Status"), "; hit") {
		isHit = 1
	}
	e.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("strategy", ru.name).
		Str("role", ru.role).
		Int("status", res.StatusCode).
		Int("hit", isHit).
		Msg("Sending response to client")
}
