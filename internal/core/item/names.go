package item

import (
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 64

// Slug converts a title to a filesystem-safe name: accents are folded,
// everything else outside [a-z0-9] collapses to underscores.
func Slug(title string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}

	s := strings.TrimRight(b.String(), "_")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "_")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// BaseName is the file name an item is stored under, without a uniqueness
// suffix: <slug>.<type>.<ext>. Sidecar items always use .yml.
func BaseName(it *Item) string {
	title := it.Title
	if title == "" && it.URL != "" {
		if u, err := url.Parse(it.URL); err == nil {
			title = u.Host + u.Path
		}
	}
	ext := it.Format.Ext()
	if it.IsSidecar() {
		ext = "yml"
	}
	return Slug(title) + "." + string(it.Type) + "." + ext
}

// PayloadName is the file name of a binary payload next to its sidecar.
func PayloadName(sidecar string, f Format) string {
	return strings.TrimSuffix(sidecar, path.Ext(sidecar)) + "." + f.Ext()
}

// CanonicalizeURL normalises a URL for identity comparisons. Unparseable
// input is returned trimmed but otherwise unchanged.
func CanonicalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// IsURL reports whether s looks like an absolute http(s) URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
