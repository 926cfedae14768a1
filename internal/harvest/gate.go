// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"regexp"
	"strings"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

// DefaultMinKeywordCount is the keyword threshold when none is configured.
const DefaultMinKeywordCount = 10

// Gate decides whether a patent page belongs in the results: it passes when
// any classification code contains the configured code, otherwise when the
// keyword occurs at least MinKeywordCount times in the page text.
type Gate struct {
	classification string
	minCount       int
	keyword        *regexp.Regexp
}

// NewGate compiles the filter. The keyword is matched literally and
// case-insensitively; a non-positive minimum selects DefaultMinKeywordCount.
func NewGate(f types.FilterConfig) *Gate {
	g := &Gate{classification: f.Classification, minCount: f.MinKeywordCount}
	if g.minCount <= 0 {
		g.minCount = DefaultMinKeywordCount
	}
	if f.Keyword != "" {
		g.keyword = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(f.Keyword))
	}
	return g
}

// Enabled reports whether the gate can reject a page.
func (g *Gate) Enabled() bool {
	return g != nil && (g.classification != "" || g.keyword != nil)
}

// MatchesCode reports whether any code contains the classification.
func (g *Gate) MatchesCode(codes []string) bool {
	if g.classification == "" {
		return false
	}
	for _, c := range codes {
		if strings.Contains(c, g.classification) {
			return true
		}
	}
	return false
}

// KeywordCount counts keyword occurrences in text.
func (g *Gate) KeywordCount(text string) int {
	if g.keyword == nil {
		return 0
	}
	return len(g.keyword.FindAllStringIndex(text, -1))
}

// Allow applies the full rule. pageText is consulted only when no code
// matches. It returns the verdict and the keyword count (-1 when the text
// was not read).
func (g *Gate) Allow(codes []string, pageText func() string) (bool, int) {
	if !g.Enabled() || g.MatchesCode(codes) {
		return true, -1
	}
	n := g.KeywordCount(pageText())
	return g.keyword != nil && n >= g.minCount, n
}
