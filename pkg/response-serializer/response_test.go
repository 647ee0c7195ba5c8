package serializer

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestResponseToBytesBodyIntact(t *testing.T) {
	response := `HTTP/1.1 200 OK
Server: Test

This is the body`

	res, err := http.ReadResponse(bufio.NewReader(strings.NewReader(response)), nil)
	if err != nil {
		panic(err)
	}

	_, err = ResponseToBytes(res, time.Now())
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	// the original response must still be consumable after serialization
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if fmt.Sprintf("%s", body) != "This is the body" {
		t.Fatalf("Body: %s", body)
	}
}

func TestStoredResponseRoundTrip(t *testing.T) {
	response := `HTTP/1.1 200 OK
Server: Test
Content-Type: text/plain

Hello stored world`

	res, err := http.ReadResponse(bufio.NewReader(strings.NewReader(response)), nil)
	if err != nil {
		panic(err)
	}
	storedAt := time.Unix(time.Now().Unix(), 0)

	bts, err := ResponseToBytes(res, storedAt)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	stored, err := BytesToResponse(bts, nil)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}

	if !stored.StoredAt.Equal(storedAt) {
		t.Fatalf("StoredAt is %v, expected %v", stored.StoredAt, storedAt)
	}
	if h := stored.Response.Header.Get("Offline-Cache-Stored-At"); h != "" {
		t.Fatalf("Storage header leaked: %s", h)
	}
	if ct := stored.Response.Header.Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("Content-Type is %s", ct)
	}
	body, _ := io.ReadAll(stored.Response.Body)
	if string(body) != "Hello stored world" {
		t.Fatalf("Body: %s", body)
	}
}
