package sitemap

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"peregrine/internal/urlutil"
)

// Entry is one URL yielded from a sitemap urlset.
type Entry struct {
	Loc        string
	LastMod    string
	ChangeFreq string
	Priority   string
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSet struct {
	URLs []struct {
		Loc        string `xml:"loc"`
		LastMod    string `xml:"lastmod"`
		ChangeFreq string `xml:"changefreq"`
		Priority   string `xml:"priority"`
	} `xml:"url"`
}

// Reader fetches and traverses sitemaps for one domain.
type Reader struct {
	Domain    string
	UserAgent string
	Client    *http.Client
}

func NewReader(domain, userAgent string) *Reader {
	return &Reader{
		Domain:    domain,
		UserAgent: userAgent,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Collect walks the candidate sitemaps breadth-first and returns up to cap
// same-domain entries. When candidates is empty the conventional
// /sitemap.xml and /sitemap_index.xml locations are probed. Sitemap indexes
// enqueue their children; a processed set guarantees termination on cyclic
// references.
func (r *Reader) Collect(ctx context.Context, candidates []string, cap int) []Entry {
	queue := append([]string(nil), candidates...)
	if len(queue) == 0 {
		queue = []string{
			fmt.Sprintf("https://%s/sitemap.xml", r.Domain),
			fmt.Sprintf("https://%s/sitemap_index.xml", r.Domain),
		}
	}

	processed := make(map[string]struct{})
	var entries []Entry

	for len(queue) > 0 && len(entries) < cap {
		smURL := queue[0]
		queue = queue[1:]

		if _, done := processed[smURL]; done {
			continue
		}
		processed[smURL] = struct{}{}

		body, err := r.fetch(ctx, smURL)
		if err != nil {
			continue
		}

		if strings.Contains(string(body), "<sitemapindex") {
			var idx sitemapIndex
			if err := xml.Unmarshal(body, &idx); err != nil {
				continue
			}
			for _, child := range idx.Sitemaps {
				if loc := strings.TrimSpace(child.Loc); loc != "" {
					queue = append(queue, loc)
				}
			}
			continue
		}

		var us urlSet
		if err := xml.Unmarshal(body, &us); err != nil {
			continue
		}
		for _, ue := range us.URLs {
			if len(entries) >= cap {
				break
			}
			loc := strings.TrimSpace(ue.Loc)
			if loc == "" {
				continue
			}
			u, err := url.Parse(loc)
			if err != nil {
				continue
			}
			if !urlutil.SameDomain(u.Hostname(), r.Domain, true) {
				continue
			}
			entries = append(entries, Entry{
				Loc:        loc,
				LastMod:    strings.TrimSpace(ue.LastMod),
				ChangeFreq: strings.TrimSpace(ue.ChangeFreq),
				Priority:   strings.TrimSpace(ue.Priority),
			})
		}
	}

	return entries
}

// fetch downloads one sitemap, transparently gunzipping bodies for .gz URLs.
func (r *Reader) fetch(ctx context.Context, smURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, smURL, nil)
	if err != nil {
		return nil, err
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap %s returned status %d", smURL, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if strings.HasSuffix(strings.ToLower(strings.Split(smURL, "?")[0]), ".gz") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	return io.ReadAll(reader)
}
