package sitemap

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestReader(srv *httptest.Server) *Reader {
	r := NewReader("example.com", "PeregrineBot/1.0")
	r.Client = srv.Client()
	return r
}

func TestCollectURLSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/</loc><lastmod>2024-01-01</lastmod><priority>1.0</priority></url>
  <url><loc>https://blog.example.com/post</loc></url>
  <url><loc>https://other.com/page</loc></url>
</urlset>`)
	}))
	defer srv.Close()

	r := newTestReader(srv)
	entries := r.Collect(context.Background(), []string{srv.URL + "/sitemap.xml"}, 100)

	if len(entries) != 2 {
		t.Fatalf("expected 2 same-domain entries, got %d (%v)", len(entries), entries)
	}
	if entries[0].Loc != "https://example.com/" || entries[0].LastMod != "2024-01-01" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Loc != "https://blog.example.com/post" {
		t.Fatalf("subdomain URL should be yielded, got %+v", entries[1])
	}
}

func TestCollectSitemapIndex(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/sitemap_index.xml":
			fmt.Fprintf(w, `<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/pages.xml</loc></sitemap>
  <sitemap><loc>%s/posts.xml</loc></sitemap>
  <sitemap><loc>%s/sitemap_index.xml</loc></sitemap>
</sitemapindex>`, srv.URL, srv.URL, srv.URL)
		case "/pages.xml":
			fmt.Fprint(w, `<urlset><url><loc>https://example.com/a</loc></url></urlset>`)
		case "/posts.xml":
			fmt.Fprint(w, `<urlset><url><loc>https://example.com/b</loc></url></urlset>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := newTestReader(srv)
	// The index references itself; the processed set must break the cycle.
	entries := r.Collect(context.Background(), []string{srv.URL + "/sitemap_index.xml"}, 100)

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries across child sitemaps, got %d", len(entries))
	}
}

func TestCollectCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var b strings.Builder
		b.WriteString("<urlset>")
		for i := 0; i < 20; i++ {
			fmt.Fprintf(&b, "<url><loc>https://example.com/p%d</loc></url>", i)
		}
		b.WriteString("</urlset>")
		fmt.Fprint(w, b.String())
	}))
	defer srv.Close()

	r := newTestReader(srv)
	entries := r.Collect(context.Background(), []string{srv.URL + "/sitemap.xml"}, 5)
	if len(entries) != 5 {
		t.Fatalf("expected cap of 5 entries, got %d", len(entries))
	}
}

func TestCollectGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gz := gzip.NewWriter(w)
		fmt.Fprint(gz, `<urlset><url><loc>https://example.com/zipped</loc></url></urlset>`)
		gz.Close()
	}))
	defer srv.Close()

	r := newTestReader(srv)
	entries := r.Collect(context.Background(), []string{srv.URL + "/sitemap.xml.gz"}, 100)
	if len(entries) != 1 || entries[0].Loc != "https://example.com/zipped" {
		t.Fatalf("gzipped sitemap not parsed: %v", entries)
	}
}

func TestCollectBadSitemapNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := newTestReader(srv)
	entries := r.Collect(context.Background(), []string{srv.URL + "/sitemap.xml"}, 100)
	if len(entries) != 0 {
		t.Fatalf("expected no entries from a failing sitemap, got %d", len(entries))
	}
}
