package cachename

import (
	"strings"

	"github.com/offline-cache/offline-cache/cache"

	"github.com/rs/zerolog/log"
)

const versionSeparator = "-"

// Namer computes the versioned names of the engine's named caches and cleans
// up names left behind by previous versions.
// Names look like "static-v1": role, separator, version.
type Namer struct {
	// Current cache version, usually a build identifier.
	// Compared only for equality, never ordered.
	Version string
	// Roles managed by the engine.
	Roles []string
}

// Name returns the cache name for the given role under the current version.
func (n Namer) Name(role string) string {
	return role + versionSeparator + n.Version
}

// BelongsTo reports whether the given cache name belongs to one of the known
// roles, and if so which role and version it carries.
// The role prefix is checked before the version is even looked at: a name
// that does not start with a known role must never be touched.
func (n Namer) BelongsTo(name string) (role, version string, ok bool) {
	for _, r := range n.Roles {
		if strings.HasPrefix(name, r+versionSeparator) {
			return r, strings.TrimPrefix(name, r+versionSeparator), true
		}
	}
	return "", "", false
}

// PurgeStale deletes every known-role cache whose version does not match the
// current one. Deletion failures are logged and do not abort the pass.
func (n Namer) PurgeStale(provider cache.CacheProvider) {
	n.purge(provider, false)
}

// PurgeAll deletes every known-role cache regardless of version.
func (n Namer) PurgeAll(provider cache.CacheProvider) {
	n.purge(provider, true)
}

func (n Namer) purge(provider cache.CacheProvider, includeCurrent bool) {
	names, err := provider.Names()
	if err != nil {
		log.Error().Err(err).Msg("Could not list caches for purge")
		return
	}
	for _, name := range names {
		_, version, ok := n.BelongsTo(name)
		if !ok {
			continue
		}
		if !includeCurrent && version == n.Version {
			continue
		}
		log.Debug().Str("cache", name).Msg("Deleting cache")
		if err := provider.DeleteAll(name); err != nil {
			log.Error().Err(err).Str("cache", name).Msg("Could not delete cache")
		}
	}
}
