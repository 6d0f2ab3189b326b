// Package proxy resolves which upstream backend a request targets and streams the
// upstream response back to the caller.
package proxy

import (
	"net/http"
	"net/url"
	"strings"

	"storegate/internal/platform/config"
)

// TargetHeader lets a caller pick the backend explicitly. It is never forwarded.
const TargetHeader = "X-Target-Server"

// AuthorizationClass tells downstream code which credentials the backend expects.
type AuthorizationClass string

const (
	AuthOAuth           AuthorizationClass = "OAuth"
	AuthClickAndCollect AuthorizationClass = "C&C"
	AuthDefault         AuthorizationClass = "NGT"
	AuthExternal        AuthorizationClass = "External"
)

// Recognized values of TargetHeader.
const (
	TargetClickAndCollect = "click & collect"
	TargetPolldaddy       = "polldaddy"
	TargetZoopit          = "zoopit"
	TargetElastic         = "elastic"
	TargetJervPayexProxy  = "jerv payex proxy"
)

const legacySource = "ax"

// Target is the resolved backend for one request.
type Target struct {
	Server        string
	Authorization AuthorizationClass
}

// Router maps requests to backends. It holds no per-request state.
type Router struct {
	backends config.Backends
}

func NewRouter(backends config.Backends) *Router {
	return &Router{backends: backends}
}

// Resolve picks the backend for a request. An explicit TargetHeader wins and is removed
// from header; unknown header values are used verbatim as the server. Otherwise OAuth
// paths go to the OAuth backend, the legacy source alias goes to the legacy backend and
// everything else goes to the default backend.
func (r *Router) Resolve(header http.Header, originalURL string) Target {
	if name := header.Get(TargetHeader); name != "" {
		header.Del(TargetHeader)
		return r.byName(name)
	}
	if strings.Contains(strings.ToLower(originalURL), "/oauth") {
		return Target{Server: r.backends.OAuth, Authorization: AuthOAuth}
	}
	if r.Source(originalURL) == legacySource {
		return Target{Server: r.backends.LegacyAxapta, Authorization: AuthExternal}
	}
	return Target{Server: r.backends.Default, Authorization: AuthDefault}
}

func (r *Router) byName(name string) Target {
	switch name {
	case TargetClickAndCollect:
		return Target{Server: r.backends.ClickAndCollect, Authorization: AuthClickAndCollect}
	case TargetPolldaddy:
		return Target{Server: r.backends.Polldaddy, Authorization: AuthExternal}
	case TargetZoopit:
		return Target{Server: r.backends.Zoopit, Authorization: AuthExternal}
	case TargetElastic:
		return Target{Server: r.backends.Elastic, Authorization: AuthExternal}
	case TargetJervPayexProxy:
		return Target{Server: r.backends.JervPayexProxy, Authorization: AuthExternal}
	default:
		return Target{Server: name, Authorization: AuthExternal}
	}
}

// Source returns the lower-cased source query parameter, falling back to the configured default.
func (r *Router) Source(originalURL string) string {
	source := queryOf(originalURL).Get("source")
	if source == "" {
		source = r.backends.DefaultSource
	}
	return strings.ToLower(source)
}

// ShouldPatch reports whether a crm-sourced request asks for a non-crm format, in
// which case the response needs patching by the caller.
func (r *Router) ShouldPatch(originalURL string) bool {
	format := queryOf(originalURL).Get("format")
	return r.Source(originalURL) == "crm" && strings.ToLower(format) != "crm"
}

// BuildURI drops format and source parameters, and a trailing bare "?", from
// originalURL and appends the rest to server. Remaining parameters keep their order
// and encoding.
func BuildURI(server, originalURL string) string {
	path, rawQuery, _ := strings.Cut(originalURL, "?")
	kept := make([]string, 0, strings.Count(rawQuery, "&")+1)
	for _, param := range strings.Split(rawQuery, "&") {
		name, _, _ := strings.Cut(param, "=")
		if param == "" || strings.EqualFold(name, "format") || strings.EqualFold(name, "source") {
			continue
		}
		kept = append(kept, param)
	}
	uri := strings.TrimSuffix(server, "/") + ensureLeadingSlash(path)
	if len(kept) > 0 {
		uri += "?" + strings.Join(kept, "&")
	}
	return uri
}

func ensureLeadingSlash(path string) string {
	if path == "" || strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

func queryOf(originalURL string) url.Values {
	_, rawQuery, ok := strings.Cut(originalURL, "?")
	if !ok {
		return url.Values{}
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return url.Values{}
	}
	return values
}
