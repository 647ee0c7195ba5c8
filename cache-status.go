package offlinecache

import (
	"fmt"
	"net/http"
)

// Cache-Status response header per RFC 9211,
// identifying this cache as "offline-cache".
const cacheStatusName = "offline-cache"

type fwdReason string

const (
	// The cache did not contain any responses that matched the
	// request URI.
	fwdReasonUriMiss fwdReason = "uri-miss"

	// The cache did not contain any responses that could be used to
	// satisfy this request.
	fwdReasonMiss fwdReason = "miss"
)

func markHit(res *http.Response) {
	res.Header.Set("Cache-Status", cacheStatusName+"; hit")
}

func markForward(res *http.Response, reason fwdReason, stored bool) {
	status := fmt.Sprintf("%s; fwd=%s", cacheStatusName, reason)
	if stored {
		status += "; stored"
	}
	res.Header.Set("Cache-Status", status)
}
