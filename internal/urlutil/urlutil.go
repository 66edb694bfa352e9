package urlutil

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

// Normalize canonicalizes a URL for frontier bookkeeping: the fragment is
// dropped, query parameters are re-sorted ascending by key, the host is
// lower-cased, and a trailing slash is stripped unless the path is exactly
// "/". Invalid or non-HTTP URLs return ok=false.
func Normalize(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}

	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)

	if u.RawQuery != "" {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		for _, k := range keys {
			vals := q[k]
			sort.Strings(vals)
			for _, v := range vals {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				if v != "" {
					b.WriteByte('=')
					b.WriteString(url.QueryEscape(v))
				}
			}
		}
		u.RawQuery = b.String()
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), true
}

// StripWWW removes a leading "www." from a host for domain comparison. The
// URL itself keeps whatever host it was fetched under.
func StripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// SameDomain reports whether host belongs to domain: either an exact match
// after www-stripping or, when followSubdomains is set, a subdomain of it.
func SameDomain(host, domain string, followSubdomains bool) bool {
	h := StripWWW(host)
	d := StripWWW(domain)
	if h == "" || d == "" {
		return false
	}
	if h == d {
		return true
	}
	if followSubdomains && strings.HasSuffix(h, "."+d) {
		return true
	}
	return false
}

// nonHTMLExtensions lists file extensions that never resolve to crawlable
// HTML documents.
var nonHTMLExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {},
	".ico": {}, ".bmp": {}, ".tiff": {}, ".avif": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {},
	".pptx": {}, ".odt": {}, ".rtf": {}, ".txt": {}, ".csv": {},
	".js": {}, ".css": {}, ".json": {}, ".xml": {}, ".rss": {}, ".atom": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	".zip": {}, ".rar": {}, ".7z": {}, ".gz": {}, ".tar": {}, ".bz2": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {},
	".webm": {}, ".ogg": {}, ".wav": {}, ".m4a": {}, ".m4v": {}, ".mkv": {},
	".exe": {}, ".dmg": {}, ".apk": {}, ".iso": {}, ".bin": {},
}

// excludedSegments are path segments (exact, case-insensitive) that mark a
// URL as uninteresting for an SEO audit.
var excludedSegments = map[string]struct{}{
	"admin": {}, "wp-admin": {}, "administrator": {}, "login": {},
	"logout": {}, "register": {}, "signin": {}, "signup": {}, "signout": {},
	"cart": {}, "checkout": {}, "basket": {}, "account": {}, "my-account": {},
	"search": {}, "feed": {}, "rss": {}, "api": {}, "cdn-cgi": {},
	"tag": {}, "tags": {}, "author": {}, "wishlist": {}, "compare": {},
	"print": {}, "preview": {}, "embed": {}, "amp": {}, "oembed": {},
	"xmlrpc.php": {}, "wp-login.php": {}, "wp-cron.php": {},
}

// excludedPathSubstrings are rejected wherever they occur in the path.
var excludedPathSubstrings = []string{
	"/wp-content/uploads",
	"/wp-content/plugins",
	"/wp-content/themes",
	"/wp-includes",
	"/wp-json",
	"/cgi-bin",
	"/node_modules",
	"/.well-known",
}

// excludedQueryKeys reject a URL when present in the query string: tracking,
// session, pagination, sort/filter, cache-busting, and search parameters.
var excludedQueryKeys = map[string]struct{}{
	"fbclid": {}, "gclid": {}, "msclkid": {}, "dclid": {}, "yclid": {},
	"mc_cid": {}, "mc_eid": {}, "igshid": {}, "ref": {}, "referrer": {},
	"sessionid": {}, "session_id": {}, "sid": {}, "phpsessid": {},
	"jsessionid": {}, "token": {}, "auth": {},
	"page": {}, "paged": {}, "p": {}, "pg": {}, "offset": {}, "start": {},
	"limit": {}, "per_page": {},
	"sort": {}, "sortby": {}, "sort_by": {}, "order": {}, "orderby": {},
	"order_by": {}, "filter": {}, "dir": {}, "view": {},
	"t": {}, "_": {}, "v": {}, "ver": {}, "version": {}, "cb": {},
	"cachebuster": {}, "nocache": {}, "timestamp": {},
	"q": {}, "s": {}, "query": {}, "search": {}, "keyword": {}, "keywords": {},
	"replytocom": {}, "share": {}, "print": {},
}

// IsSeoRelevant decides whether a URL is worth crawling for an SEO audit.
// Rejections are checked in order: non-HTML file extension, excluded path
// segment, excluded path substring, excluded query key. The returned reason
// names the first rule that rejected the URL.
func IsSeoRelevant(raw string) (bool, string) {
	u, err := url.Parse(raw)
	if err != nil {
		return false, "invalid URL"
	}

	lowerPath := strings.ToLower(u.Path)

	if ext := path.Ext(lowerPath); ext != "" {
		if _, bad := nonHTMLExtensions[ext]; bad {
			return false, "non-HTML file extension " + ext
		}
	}

	for _, seg := range strings.Split(lowerPath, "/") {
		if seg == "" {
			continue
		}
		if _, bad := excludedSegments[seg]; bad {
			return false, "excluded path segment '" + seg + "'"
		}
	}

	for _, sub := range excludedPathSubstrings {
		if strings.Contains(lowerPath, sub) {
			return false, "excluded path pattern '" + sub + "'"
		}
	}

	for key := range u.Query() {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") {
			return false, "tracking parameter '" + key + "'"
		}
		if _, bad := excludedQueryKeys[lk]; bad {
			return false, "excluded query parameter '" + key + "'"
		}
	}

	return true, ""
}
