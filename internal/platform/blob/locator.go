package blob

import (
	"net/url"
	"strings"
)

// Locator maps pathnames to URLs under a base and back. It is used by the
// backends that have no public URL of their own.
type Locator struct {
	base string
}

func NewLocator(base string) Locator {
	return Locator{base: strings.TrimRight(strings.TrimSpace(base), "/")}
}

func (l Locator) URL(pathname string) string {
	p := strings.TrimLeft(pathname, "/")
	if l.base == "" {
		return p
	}
	return l.base + "/" + escapePath(p)
}

func (l Locator) DownloadURL(pathname string) string {
	return WithDownload(l.URL(pathname))
}

// Pathname resolves a locator produced by URL or DownloadURL. A bare
// pathname is accepted as is.
func (l Locator) Pathname(locator string) (string, bool) {
	loc := strings.TrimSpace(locator)
	if loc == "" {
		return "", false
	}
	if l.base != "" && strings.HasPrefix(loc, l.base+"/") {
		rest := StripQuery(strings.TrimPrefix(loc, l.base+"/"))
		p, err := url.PathUnescape(rest)
		if err != nil || p == "" {
			return "", false
		}
		return p, true
	}
	if strings.Contains(loc, "://") {
		return "", false
	}
	p := strings.TrimLeft(StripQuery(loc), "/")
	return p, p != ""
}

// WithDownload appends the download marker query parameter.
func WithDownload(u string) string {
	if strings.Contains(u, "?") {
		return u + "&download=1"
	}
	return u + "?download=1"
}

func StripQuery(s string) string {
	if i := strings.Index(s, "?"); i >= 0 {
		return s[:i]
	}
	return s
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
