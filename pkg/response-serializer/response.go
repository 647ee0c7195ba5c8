package serializer

import (
	"bufio"
	"bytes"
	"net/http"
	"strconv"
	"time"
)

const storedAtHeaderName = "Offline-Cache-Stored-At"

// StoredResponse is a cached response together with the time it was stored.
type StoredResponse struct {
	Response *http.Response
	StoredAt time.Time
}

// ResponseToBytes returns the HTTP/1.1 representation of the response,
// with the storage time tucked into a private header.
// Serializing consumes the one-read-only response body, so the body is
// replaced with an equivalent readable one before returning: the caller can
// still send the original response onward. This is the "clone before store"
// guarantee every cache write depends on.
func ResponseToBytes(res *http.Response, storedAt time.Time) ([]byte, error) {
	res.Header.Set(storedAtHeaderName, strconv.FormatInt(storedAt.Unix(), 10))
	buf := &bytes.Buffer{}
	err := res.Write(buf)
	res.Header.Del(storedAtHeaderName)
	if err != nil {
		return nil, err
	}
	bts := buf.Bytes()
	// re-read the serialized bytes to give the response a fresh body
	clone, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(bts)), res.Request)
	if err != nil {
		return nil, err
	}
	res.Body = clone.Body
	return bts, nil
}

// BytesToResponse reconstructs a stored response.
// The returned response is associated with the given request, which may be
// nil. A missing storage time is not an error and yields the zero time.
func BytesToResponse(b []byte, req *http.Request) (StoredResponse, error) {
	sRes := StoredResponse{}
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), req)
	if err != nil {
		return sRes, err
	}
	if ts, err := strconv.ParseInt(res.Header.Get(storedAtHeaderName), 10, 64); err == nil {
		sRes.StoredAt = time.Unix(ts, 0)
	}
	res.Header.Del(storedAtHeaderName)
	sRes.Response = res
	return sRes, nil
}
