// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query parses patent search queries and synthesizes the per-inventor
// search URLs derived from them.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// DefaultRequiredToken is the clause every search query must contain.
const DefaultRequiredToken = "assignee"

// DefaultBaseURL is the search site root.
const DefaultBaseURL = "https://patents.google.com/"

var (
	// ErrMissingToken reports a query without the required clause.
	ErrMissingToken = errors.New("query is missing the required token")

	// ErrMissingClassification reports a query with no classification code.
	ErrMissingClassification = errors.New("no classification code in query")
)

// classificationPattern picks the first code-like run out of the
// parenthesised part of a query, e.g. "((H04L9))" -> "H04L9".
var classificationPattern = regexp.MustCompile(`[^(][a-zA-Z\d]+[^)]`)

// Query is a validated search query split around its required clause.
type Query struct {
	// Raw is the query exactly as entered.
	Raw string

	// Token is the required clause name, e.g. "assignee".
	Token string

	// Before holds the query parameters preceding the clause, '+'-joined.
	Before string

	// After holds the parameters following the clause value, '+'-joined.
	After string

	// Classification is the code pages must list to pass the gate.
	Classification string
}

// Parse validates raw and splits it around token. It fails with
// ErrMissingToken when the token is absent; an empty token selects
// DefaultRequiredToken.
func Parse(raw, token string) (Query, error) {
	if token == "" {
		token = DefaultRequiredToken
	}
	raw = strings.TrimSpace(raw)
	idx := strings.Index(raw, token)
	if idx < 0 {
		return Query{}, fmt.Errorf("%w %q: %q", ErrMissingToken, token, raw)
	}

	q := Query{
		Raw:    raw,
		Token:  token,
		Before: plusJoin(raw[:idx]),
	}

	// The clause value runs to the first space; the rest are trailing parameters.
	rest := strings.TrimSpace(raw[idx+len(token):])
	if _, after, ok := strings.Cut(rest, " "); ok {
		q.After = plusJoin(after)
	}

	q.Classification = strings.TrimFunc(classificationPattern.FindString(q.Before), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return q, nil
}

// RequireClassification returns the configured override, or the code parsed
// from the query, or ErrMissingClassification.
func (q Query) RequireClassification(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if q.Classification == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingClassification, q.Raw)
	}
	return q.Classification, nil
}

// EncodeName query-escapes an inventor name for the search URL.
func EncodeName(name string) string {
	return url.QueryEscape(strings.TrimSpace(name))
}

// InventorURL builds the absolute search URL listing the patents of one
// inventor within the same query scope:
//
//	?q=<before>&inventor=<name>&<after>&oq=<before>+inventor:(<name>)+<after>
//
// Empty pieces are omitted.
func (q Query) InventorURL(baseURL, name string) string {
	inv := EncodeName(name)

	params := []string{}
	if q.Before != "" {
		params = append(params, "q="+q.Before)
	}
	params = append(params, "inventor="+inv)
	if q.After != "" {
		params = append(params, q.After)
	}

	oq := []string{}
	if q.Before != "" {
		oq = append(oq, q.Before)
	}
	oq = append(oq, "inventor:("+inv+")")
	if q.After != "" {
		oq = append(oq, q.After)
	}
	params = append(params, "oq="+strings.Join(oq, "+"))

	return Resolve(baseURL, "?"+strings.Join(params, "&"))
}

// Resolve joins ref onto base the way a browser resolves a relative link.
func Resolve(baseURL, ref string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

func plusJoin(s string) string {
	return strings.Join(strings.Fields(s), "+")
}
