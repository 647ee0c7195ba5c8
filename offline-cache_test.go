package offlinecache

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
)

// End-to-end over a real origin: the engine plugged into an http.Client as
// its transport, the way an application embeds it.
func TestEngineAgainstChiOrigin(t *testing.T) {
	staticCount := 0
	apiCount := 0
	r := chi.NewRouter()
	r.Get("/app.js", func(w http.ResponseWriter, r *http.Request) {
		staticCount++
		w.Write([]byte("console.log(1)"))
	})
	r.Get("/api/items", func(w http.ResponseWriter, r *http.Request) {
		apiCount++
		w.Write([]byte(fmt.Sprintf("call %d", apiCount)))
	})
	server := httptest.NewServer(r)
	defer server.Close()

	origin, _ := url.Parse(server.URL)
	e := New(Config{OriginURL: *origin, Logger: testLogger()})
	e.Activate()
	client := &http.Client{Transport: e}

	// static asset: the second request is a cache hit
	for i := 0; i < 2; i++ {
		res, err := client.Get(server.URL + "/app.js")
		if err != nil {
			t.Fatal(err)
		}
		if body := readBody(t, res); body != "console.log(1)" {
			t.Fatalf("Body is %s", body)
		}
	}
	if staticCount != 1 {
		t.Fatalf("Origin handled %d static requests", staticCount)
	}

	// api: network-first reaches the origin every time
	for i := 0; i < 2; i++ {
		res, err := client.Get(server.URL + "/api/items")
		if err != nil {
			t.Fatal(err)
		}
		readBody(t, res)
	}
	if apiCount != 2 {
		t.Fatalf("Origin handled %d api requests", apiCount)
	}

	// once the origin is gone, both are served from the cache
	server.Close()
	res, err := client.Get(origin.String() + "/app.js")
	if err != nil {
		t.Fatal(err)
	}
	if body := readBody(t, res); body != "console.log(1)" {
		t.Fatalf("Body is %s", body)
	}
	res, err = client.Get(origin.String() + "/api/items")
	if err != nil {
		t.Fatal(err)
	}
	if body := readBody(t, res); body != "call 2" {
		t.Fatalf("Body is %s", body)
	}
}
