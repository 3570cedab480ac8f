package dom

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/html"
)

// Views recompile the same handful of selectors on every render.
var compiled, _ = lru.New[string, cascadia.Matcher](512)

// Compile parses a CSS selector (or a comma separated group) into a
// matcher. Results are cached by selector text.
func Compile(selector string) (cascadia.Matcher, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("compile selector: empty selector")
	}
	if m, ok := compiled.Get(selector); ok {
		return m, nil
	}
	m, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	compiled.Add(selector, m)
	return m, nil
}

// Query returns the first descendant of root matching m, or nil.
// Root itself is never matched.
func Query(root *html.Node, m cascadia.Matcher) *html.Node {
	if root == nil {
		return nil
	}
	return cascadia.Query(root, m)
}

// QueryAll returns every descendant of root matching m in document order.
// Root itself is never matched.
func QueryAll(root *html.Node, m cascadia.Matcher) []*html.Node {
	if root == nil {
		return nil
	}
	return cascadia.QueryAll(root, m)
}
