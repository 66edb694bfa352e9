package urlutil

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://Example.com/About/", "https://example.com/About", true},
		{"https://example.com/", "https://example.com/", true},
		{"https://example.com", "https://example.com/", true},
		{"https://example.com/page#section", "https://example.com/page", true},
		{"https://example.com/p?b=2&a=1", "https://example.com/p?a=1&b=2", true},
		{"mailto:team@example.com", "", false},
		{"javascript:void(0)", "", false},
		{"/relative/only", "", false},
		{"://bad", "", false},
	}
	for _, tc := range cases {
		got, ok := Normalize(tc.in)
		if ok != tc.ok {
			t.Fatalf("Normalize(%q) ok = %v, want %v", tc.in, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"https://Example.com/About/?z=1&a=2#frag",
		"https://www.example.com/",
		"https://example.com/a/b/c/",
	}
	for _, in := range inputs {
		once, ok := Normalize(in)
		if !ok {
			t.Fatalf("Normalize(%q) unexpectedly failed", in)
		}
		twice, ok := Normalize(once)
		if !ok || twice != once {
			t.Fatalf("Normalize not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestSameDomain(t *testing.T) {
	if !SameDomain("www.example.com", "example.com", false) {
		t.Fatalf("www host should match bare domain")
	}
	if SameDomain("blog.example.com", "example.com", false) {
		t.Fatalf("subdomain should not match without followSubdomains")
	}
	if !SameDomain("blog.example.com", "example.com", true) {
		t.Fatalf("subdomain should match with followSubdomains")
	}
	if SameDomain("notexample.com", "example.com", true) {
		t.Fatalf("suffix overlap without dot boundary must not match")
	}
}

func TestIsSeoRelevantExtensions(t *testing.T) {
	rejected := []string{
		"https://example.com/logo.jpg",
		"https://example.com/report.PDF",
		"https://example.com/app.js",
		"https://example.com/style.css",
		"https://example.com/font.woff2",
		"https://example.com/archive.zip",
	}
	for _, u := range rejected {
		if ok, reason := IsSeoRelevant(u); ok {
			t.Fatalf("IsSeoRelevant(%q) = true, want rejection", u)
		} else if reason == "" {
			t.Fatalf("IsSeoRelevant(%q) rejected without a reason", u)
		}
	}
}

func TestIsSeoRelevantSegments(t *testing.T) {
	rejected := []string{
		"https://example.com/admin/users",
		"https://example.com/blog/TAG/go",
		"https://example.com/Login",
		"https://example.com/cart",
		"https://example.com/api/v1/items",
		"https://example.com/author/jane",
	}
	for _, u := range rejected {
		if ok, _ := IsSeoRelevant(u); ok {
			t.Fatalf("IsSeoRelevant(%q) = true, want segment rejection", u)
		}
	}
}

func TestIsSeoRelevantPathSubstrings(t *testing.T) {
	if ok, _ := IsSeoRelevant("https://example.com/wp-content/uploads/2024/img"); ok {
		t.Fatalf("wp-content/uploads path should be rejected")
	}
	if ok, _ := IsSeoRelevant("https://example.com/wp-json/wp/v2/posts"); ok {
		t.Fatalf("wp-json path should be rejected")
	}
}

func TestIsSeoRelevantQueryKeys(t *testing.T) {
	rejected := []string{
		"https://example.com/p?utm_source=news",
		"https://example.com/p?UTM_CAMPAIGN=x",
		"https://example.com/p?fbclid=abc",
		"https://example.com/p?sessionid=1",
		"https://example.com/list?page=3",
		"https://example.com/list?sort=price",
		"https://example.com/?q=term",
		"https://example.com/p?t=1690000000",
	}
	for _, u := range rejected {
		if ok, _ := IsSeoRelevant(u); ok {
			t.Fatalf("IsSeoRelevant(%q) = true, want query rejection", u)
		}
	}
}

func TestIsSeoRelevantAccepts(t *testing.T) {
	accepted := []string{
		"https://example.com/",
		"https://example.com/about",
		"https://example.com/blog/some-post",
		"https://example.com/products/widget?color=blue",
	}
	for _, u := range accepted {
		if ok, reason := IsSeoRelevant(u); !ok {
			t.Fatalf("IsSeoRelevant(%q) rejected: %s", u, reason)
		}
	}
}
