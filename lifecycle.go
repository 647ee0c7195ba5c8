package offlinecache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	serializer "github.com/offline-cache/offline-cache/pkg/response-serializer"
)

// State is the engine's lifecycle state.
type State int

const (
	StateInstalling State = iota
	StateInstalled
	StateActivating
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	}
	return "unknown"
}

// Control message types understood by HandleMessage.
const (
	MessageSkipWaiting = "SKIP_WAITING"
	MessageClearCache  = "CLEAR_CACHE"
)

// Message is an inbound control-channel message.
type Message struct {
	Type string `json:"type"`
}

// ParseMessage decodes the JSON wire form of a control message,
// e.g. {"type": "SKIP_WAITING"}.
func ParseMessage(b []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(b, &msg)
	return msg, err
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.stateMutex.Lock()
	defer e.stateMutex.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMutex.Lock()
	e.state = s
	e.stateMutex.Unlock()
	e.log.Debug().Stringer("state", s).Msg("Lifecycle state changed")
}

// Install pre-populates the static cache with the precache manifest.
// A path that fails to fetch is logged and skipped so one broken asset does
// not take down the rest; Install as a whole only fails if the store itself
// does.
func (e *Engine) Install(ctx context.Context) error {
	e.setState(StateInstalling)
	name := e.namer.Name(RoleStatic)
	for _, p := range e.precache {
		req, err := e.originRequest(ctx, p)
		if err != nil {
			e.log.Error().Err(err).Str("path", p).Msg("Could not create precache request")
			continue
		}
		res, err := e.transport.RoundTrip(req)
		if err != nil {
			e.log.Error().Err(err).Str("path", p).Msg("Could not fetch precache path")
			continue
		}
		if res.StatusCode != http.StatusOK {
			e.log.Error().Int("status", res.StatusCode).Str("path", p).Msg("Precache path not ok")
			res.Body.Close()
			continue
		}
		bts, err := serializer.ResponseToBytes(res, time.Now())
		res.Body.Close()
		if err != nil {
			e.log.Error().Err(err).Str("path", p).Msg("Could not serialize precached response")
			continue
		}
		if err := e.cache.Put(name, e.requestKey(req), bts); err != nil {
			return fmt.Errorf("precaching %s: %w", p, err)
		}
		e.log.Debug().Str("path", p).Str("cache", name).Msg("Precached")
	}
	e.setState(StateInstalled)
	return nil
}

// Activate purges caches left behind by previous versions and makes the
// engine take over. Purge failures are logged and do not block activation.
func (e *Engine) Activate() {
	e.setState(StateActivating)
	e.namer.PurgeStale(e.cache)
	e.setState(StateActive)
	e.log.Info().Msg("Engine active")
}

// HandleMessage reacts to a control-channel message.
// Unrecognized message types are ignored.
func (e *Engine) HandleMessage(msg Message) {
	switch msg.Type {
	case MessageSkipWaiting:
		e.log.Info().Msg("Skip-waiting requested")
		if e.State() != StateActive {
			e.Activate()
		}
	case MessageClearCache:
		e.log.Info().Msg("Clearing all caches")
		e.namer.PurgeAll(e.cache)
	default:
		e.log.Debug().Str("type", msg.Type).Msg("Ignoring unknown message")
	}
}

func (e *Engine) originRequest(ctx context.Context, path string) (*http.Request, error) {
	target := path
	if e.originURL.Host != "" {
		target = strings.TrimSuffix(e.originURL.String(), "/") + path
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
}
