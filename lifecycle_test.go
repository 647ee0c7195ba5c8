package offlinecache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/offline-cache/offline-cache/cache"
)

// manifestTransport serves a fixed body per path and fails everything else.
func manifestTransport(pages map[string]string) http.RoundTripper {
	return transportFunc(func(r *http.Request) (*http.Response, error) {
		if body, ok := pages[r.URL.Path]; ok {
			return okResponse(r, body), nil
		}
		return nil, errNetwork
	})
}

func TestInstallPrecachesManifest(t *testing.T) {
	provider := cache.NewMemCache()
	e := New(Config{
		Cache: provider,
		Transport: manifestTransport(map[string]string{
			"/":              "home",
			"/manifest.json": "{}",
			"/icon.png":      "icon",
		}),
		PrecachePaths: []string{"/", "/manifest.json", "/icon.png"},
		Logger:        testLogger(),
	})

	if err := e.Install(context.Background()); err != nil {
		t.Fatal(err)
	}

	if e.State() != StateInstalled {
		t.Fatalf("State is %s", e.State())
	}
	keys, _ := provider.Keys("static-v1")
	if len(keys) != 3 {
		t.Fatalf("Keys are %v", keys)
	}
}

func TestInstallToleratesPartialFailure(t *testing.T) {
	provider := cache.NewMemCache()
	e := New(Config{
		Cache: provider,
		Transport: manifestTransport(map[string]string{
			"/":              "home",
			"/manifest.json": "{}",
			// /icon.png missing: its fetch fails
		}),
		PrecachePaths: []string{"/", "/icon.png", "/manifest.json"},
		Logger:        testLogger(),
	})

	if err := e.Install(context.Background()); err != nil {
		t.Fatal(err)
	}

	keys, _ := provider.Keys("static-v1")
	if len(keys) != 2 {
		t.Fatalf("Keys are %v", keys)
	}
}

func TestActivatePurgesStaleCaches(t *testing.T) {
	provider := cache.NewMemCache()
	for _, name := range []string{"static-v1", "dynamic-v1", "images-v1", "unrelated-foo"} {
		provider.Put(name, "/x", []byte("x"))
	}
	e := New(Config{Cache: provider, Version: "v2", Logger: testLogger()})

	e.Activate()

	if e.State() != StateActive {
		t.Fatalf("State is %s", e.State())
	}
	names, _ := provider.Names()
	if len(names) != 1 || names[0] != "unrelated-foo" {
		t.Fatalf("Names are %v", names)
	}
}

func TestSkipWaitingMessageActivates(t *testing.T) {
	e := New(Config{Transport: manifestTransport(nil), Logger: testLogger()})
	if err := e.Install(context.Background()); err != nil {
		t.Fatal(err)
	}

	e.HandleMessage(Message{Type: MessageSkipWaiting})

	if e.State() != StateActive {
		t.Fatalf("State is %s", e.State())
	}
}

func TestClearCacheMessageCausesMisses(t *testing.T) {
	fetchCount := 0
	e := New(Config{Transport: serveBody("the asset", &fetchCount), Logger: testLogger()})
	req := httptest.NewRequest("GET", "/app.js", nil)

	res, _ := e.RoundTrip(req)
	readBody(t, res)
	res, _ = e.RoundTrip(req)
	readBody(t, res)
	if fetchCount != 1 {
		t.Fatalf("Network fetched %d times before clear", fetchCount)
	}

	e.HandleMessage(Message{Type: MessageClearCache})

	res, _ = e.RoundTrip(req)
	if body := readBody(t, res); body != "the asset" {
		t.Fatalf("Body is %s", body)
	}
	if fetchCount != 2 {
		t.Fatalf("Network fetched %d times after clear", fetchCount)
	}
	if cs := res.Header.Get("Cache-Status"); !strings.Contains(cs, "fwd=uri-miss") {
		t.Fatalf("Cache-Status is %q", cs)
	}
}

func TestUnknownMessageIsIgnored(t *testing.T) {
	e := New(Config{Logger: testLogger()})
	state := e.State()

	e.HandleMessage(Message{Type: "PUSH_NOTIFICATION"})

	if e.State() != state {
		t.Fatalf("State changed to %s", e.State())
	}
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"SKIP_WAITING"}`))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != MessageSkipWaiting {
		t.Fatalf("Type is %s", msg.Type)
	}
	if _, err := ParseMessage([]byte(`not json`)); err == nil {
		t.Fatal("Expected error")
	}
}

// brokenPurgeProvider fails the operations Activate's purge depends on.
type brokenPurgeProvider struct {
	cache.CacheProvider
	failNames bool
}

func (p brokenPurgeProvider) Names() ([]string, error) {
	if p.failNames {
		return nil, errors.New("backend unavailable")
	}
	return p.CacheProvider.Names()
}

func (p brokenPurgeProvider) DeleteAll(name string) error {
	return errors.New("backend unavailable")
}

func TestActivateSurvivesPurgeFailure(t *testing.T) {
	for _, failNames := range []bool{false, true} {
		mem := cache.NewMemCache()
		mem.Put("static-v1", "/x", []byte("x"))
		provider := brokenPurgeProvider{CacheProvider: mem, failNames: failNames}
		e := New(Config{Cache: provider, Version: "v2", Logger: testLogger()})

		e.Activate()

		// the purge went nowhere but the engine still takes over
		if e.State() != StateActive {
			t.Fatalf("State is %s with failNames=%v", e.State(), failNames)
		}
	}
}
