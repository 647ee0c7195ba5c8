package offlinecache

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	serializer "github.com/offline-cache/offline-cache/pkg/response-serializer"
)

// requestKey derives the cache key for a request. Entries are GET-only, so
// the request URI identifies an entry. With an origin configured every
// intercepted request shares it; without one the engine sees every origin,
// and the host has to disambiguate the key.
func (e *Engine) requestKey(r *http.Request) string {
	if e.originURL.Host == "" && r.URL.Host != "" {
		return r.URL.Host + r.URL.RequestURI()
	}
	return r.URL.RequestURI()
}

// cacheFirst serves assets that are immutable within a version:
// a hit never touches the network.
func (e *Engine) cacheFirst(r *http.Request, role string) (*http.Response, error) {
	if res, ok := e.lookup(role, r); ok {
		markHit(res)
		return res, nil
	}
	res, err := e.transport.RoundTrip(r)
	if err != nil {
		e.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Network failed, serving offline fallback")
		return e.offlineFallback(r), nil
	}
	stored := false
	if res.StatusCode == http.StatusOK {
		stored = e.store(role, r, res)
	}
	markForward(res, fwdReasonUriMiss, stored)
	return res, nil
}

// networkFirst favors freshness for volatile data and tolerates outages by
// falling back to the last stored copy.
func (e *Engine) networkFirst(r *http.Request, role string) (*http.Response, error) {
	res, err := e.transport.RoundTrip(r)
	if err == nil {
		stored := false
		if res.StatusCode == http.StatusOK {
			stored = e.store(role, r, res)
			e.enforceLimit(role)
		}
		markForward(res, fwdReasonUriMiss, stored)
		return res, nil
	}
	e.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Network failed, trying cache")
	if cached, ok := e.lookup(role, r); ok {
		markHit(cached)
		return cached, nil
	}
	return e.offlineResponse(r), nil
}

// staleWhileRevalidate returns the stored copy immediately when there is one
// and refreshes it in the background. The background fetch is detached from
// the caller's context: the caller going away does not cancel it, and its
// result is only ever used to overwrite the store.
func (e *Engine) staleWhileRevalidate(r *http.Request, role string) (*http.Response, error) {
	if cached, ok := e.lookup(role, r); ok {
		go e.revalidate(r.Clone(context.Background()), role)
		markHit(cached)
		return cached, nil
	}
	// nothing stored, the caller has to wait for the network after all
	res, err := e.transport.RoundTrip(r)
	if err != nil {
		e.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Network failed with nothing stored")
		return e.offlineResponse(r), nil
	}
	stored := false
	if res.StatusCode == http.StatusOK {
		stored = e.store(role, r, res)
		e.enforceLimit(role)
	}
	markForward(res, fwdReasonUriMiss, stored)
	return res, nil
}

// revalidate refreshes a single entry from the network.
func (e *Engine) revalidate(r *http.Request, role string) {
	res, err := e.transport.RoundTrip(r)
	if err != nil {
		e.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Background revalidation failed")
	} else {
		if res.StatusCode == http.StatusOK {
			e.store(role, r, res)
			e.enforceLimit(role)
		}
		res.Body.Close()
	}
	if e.onRevalidate != nil {
		e.onRevalidate(e.requestKey(r), err)
	}
}

// lookup reads the stored response for the request from the role's current
// cache. Read and decode failures count as misses.
func (e *Engine) lookup(role string, r *http.Request) (*http.Response, bool) {
	name := e.namer.Name(role)
	bts, ok, err := e.cache.Get(name, e.requestKey(r))
	if err != nil {
		e.log.Error().Err(err).Str("cache", name).Msg("Could not read from cache")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	stored, err := serializer.BytesToResponse(bts, r)
	if err != nil {
		e.log.Error().Err(err).Str("cache", name).Msg("Could not decode stored response")
		return nil, false
	}
	return stored.Response, true
}

// store writes the response to the role's current cache and reports whether
// the write made it. Serialization leaves the response body readable, so the
// caller can still return the response. Write failures never fail the
// request: they are logged and the response is served as if nothing
// happened.
func (e *Engine) store(role string, r *http.Request, res *http.Response) bool {
	name := e.namer.Name(role)
	bts, err := serializer.ResponseToBytes(res, time.Now())
	if err != nil {
		e.log.Error().Err(err).Str("cache", name).Msg("Could not serialize response")
		return false
	}
	key := e.requestKey(r)
	e.log.Trace().Str("cache", name).Str("key", key).Msg("Writing to cache")
	if err := e.cache.Put(name, key, bts); err != nil {
		e.log.Error().Err(err).Str("cache", name).Str("key", key).Msg("Could not write to cache")
		return false
	}
	return true
}

// offlineFallback returns the pre-cached fallback page,
// or a synthesized 503 if none was ever cached.
func (e *Engine) offlineFallback(r *http.Request) *http.Response {
	if e.fallbackPath != "" {
		name := e.namer.Name(RoleStatic)
		if bts, ok, err := e.cache.Get(name, e.fallbackPath); err == nil && ok {
			if stored, err := serializer.BytesToResponse(bts, r); err == nil {
				markHit(stored.Response)
				return stored.Response
			}
		}
	}
	return e.offlineResponse(r)
}

// offlineResponse synthesizes the 503 returned when both the network and
// the cache come up empty. This is the only caller-visible failure.
func (e *Engine) offlineResponse(r *http.Request) *http.Response {
	body := "Offline"
	header := make(http.Header)
	header.Set("Content-Type", "text/plain; charset=utf-8")
	res := &http.Response{
		Status:        http.StatusText(http.StatusServiceUnavailable),
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
	markForward(res, fwdReasonMiss, false)
	return res
}
