package relay

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/princekumarofficial/chat-media-service/internal/media"
)

// Relay endpoint paths, relative to the console origin.
const (
	MediaRelayPath   = "/media-relay"
	ObjectRelayPath  = "/object-relay"
	DecryptRelayPath = "/decrypt-relay"
)

// Query parameter names of the relay endpoints.
const (
	ParamURL        = "url"
	ParamObjectName = "objectName"
	ParamInstance   = "instance"
	ParamCacheBust  = "_t"
)

// Route is the request template of one relay endpoint.
type Route struct {
	Path string
	// ByObjectName routes send the extracted identifier instead of a URL.
	ByObjectName bool
	// WithInstance routes also carry the messaging account to decrypt under.
	WithInstance bool
}

// DefaultRoutes maps each transport that has a relay to its route.
// Generic HTTP and inline payloads have none.
func DefaultRoutes() map[media.Transport]Route {
	return map[media.Transport]Route{
		media.TransportPrimaryStore:    {Path: MediaRelayPath},
		media.TransportSecondaryStore:  {Path: ObjectRelayPath, ByObjectName: true},
		media.TransportEncryptedSource: {Path: DecryptRelayPath, WithInstance: true},
	}
}

// Router builds relay URLs. It holds read-only configuration and is safe to
// share between all media instances.
type Router struct {
	base            string
	routes          map[media.Transport]Route
	defaultInstance string
}

// NewRouter creates a router. base is prepended to every relay path and may
// be empty for same-origin relative URLs.
func NewRouter(base, defaultInstance string, routes map[media.Transport]Route) *Router {
	if routes == nil {
		routes = DefaultRoutes()
	}
	copied := make(map[media.Transport]Route, len(routes))
	for t, r := range routes {
		copied[t] = r
	}
	return &Router{
		base:            strings.TrimRight(base, "/"),
		routes:          copied,
		defaultInstance: defaultInstance,
	}
}

// HasRoute reports whether a relay exists for the transport.
func (r *Router) HasRoute(t media.Transport) bool {
	_, ok := r.routes[t]
	return ok
}

// RouteFor builds the relay URL for a resolution, cache-busted with the
// millisecond timestamp of at. ok is false when the transport has no relay
// or the resolution lacks the identifying value the relay needs.
func (r *Router) RouteFor(res media.Resolution, instance string, at time.Time) (string, bool) {
	route, ok := r.routes[res.Transport]
	if !ok {
		return "", false
	}

	var b strings.Builder
	b.WriteString(r.base)
	b.WriteString(route.Path)
	b.WriteByte('?')

	if route.ByObjectName {
		if res.ObjectName == "" {
			return "", false
		}
		writeParam(&b, ParamObjectName, res.ObjectName)
	} else {
		target := res.Normalized
		if res.Transport == media.TransportEncryptedSource {
			target = res.Original
		}
		if target == "" {
			return "", false
		}
		writeParam(&b, ParamURL, target)
	}

	if route.WithInstance {
		if instance == "" {
			instance = r.defaultInstance
		}
		if instance == "" {
			return "", false
		}
		b.WriteByte('&')
		writeParam(&b, ParamInstance, instance)
	}

	b.WriteByte('&')
	writeParam(&b, ParamCacheBust, strconv.FormatInt(at.UnixMilli(), 10))
	return b.String(), true
}

// Reference returns the relay-ready reference of a secondary store object,
// without cache busting.
func (r *Router) Reference(objectName string) string {
	var b strings.Builder
	b.WriteString(r.base)
	b.WriteString(ObjectRelayPath)
	b.WriteByte('?')
	writeParam(&b, ParamObjectName, objectName)
	return b.String()
}

// ParseReference extracts the object name from a URL that already targets
// the object relay.
func (r *Router) ParseReference(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, ObjectRelayPath) {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.HasSuffix(strings.TrimRight(u.Path, "/"), ObjectRelayPath) {
		return "", false
	}
	name := u.Query().Get(ParamObjectName)
	return name, name != ""
}

func writeParam(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(value))
}
