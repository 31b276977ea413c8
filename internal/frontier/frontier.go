// Package frontier extracts the child-entity links of a catalog index page.
//
// The catalog is a fixed three-level hierarchy (country index, state, city).
// Given a fetched parent page, ChildLinks returns the set of links exactly one
// path segment below the parent, which the crawl driver then walks.
package frontier

import (
	"bytes"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// excludedSegments are path segments that appear under entity prefixes but do
// not name child entities (e.g. "request a quote" pages).
var excludedSegments = map[string]bool{
	"quote": true,
}

// ChildLinks extracts the child-entity URLs of a parent page.
//
// parentPath is the parent's URL path (e.g. "/usa/" or "/usa/texas/"). A link
// qualifies when it starts with parentPath, sits exactly one segment deeper,
// is not the parent itself, and names no excluded segment. The result is
// deduplicated, fully qualified against base, and lexicographically sorted so
// downstream stages see a deterministic frontier.
func ChildLinks(html []byte, base *url.URL, parentPath string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "frontier: parse page")
	}

	parentPath = ensureTrailingSlash(parentPath)
	parentDepth := pathDepth(parentPath)

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || !strings.HasPrefix(href, parentPath) {
			return
		}

		ref, parseErr := url.Parse(href)
		if parseErr != nil {
			return
		}
		path := ensureTrailingSlash(ref.Path)
		if path == parentPath {
			return
		}
		if pathDepth(path) != parentDepth+1 {
			return
		}

		last := lastSegment(path)
		if last == "" || excludedSegments[last] {
			return
		}

		seen[base.ResolveReference(&url.URL{Path: path}).String()] = true
	})

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links, nil
}

// Slug returns the last path segment of an entity URL ("texas" for
// ".../usa/texas/").
func Slug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return lastSegment(u.Path)
}

func ensureTrailingSlash(p string) string {
	if !strings.HasSuffix(p, "/") {
		return p + "/"
	}
	return p
}

// pathDepth counts the non-empty segments of a path.
func pathDepth(p string) int {
	n := 0
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			n++
		}
	}
	return n
}

func lastSegment(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}
