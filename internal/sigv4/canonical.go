// Package sigv4 implements AWS Signature Version 4 request canonicalization,
// signing, and verification, independent of any particular HTTP server or
// client library. It is the bit-exact engine behind both outgoing request
// signing and incoming request verification.
package sigv4

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// IgnoredHeaders are dropped from signing unconditionally, regardless of
// whether the caller includes them in a SignedHeaders list.
var IgnoredHeaders = map[string]struct{}{
	"authorization":  {},
	"content-length": {},
	"user-agent":     {},
}

// uriUnreservedSet mirrors the RFC 3986 unreserved character set plus the
// extra characters AWS leaves unescaped in a path segment.
func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}

// escapeStrict percent-encodes every byte outside the unreserved set.
// Unlike url.QueryEscape it never substitutes '+' for space.
func escapeStrict(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteString("%")
		const hex = "0123456789ABCDEF"
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0xF])
	}
	return b.String()
}

// CanonicalURI returns the canonical URI path for a request. For the s3
// service the path is used verbatim (it is assumed already percent-encoded
// by the URL parser); every other service gets each segment percent-encoded
// a second time under the strict unreserved set.
func CanonicalURI(path, service string) string {
	if path == "" {
		return "/"
	}
	if service == "s3" {
		return path
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = escapeStrict(seg)
	}
	return strings.Join(segments, "/")
}

type queryPair struct {
	key, value string
	order      int
}

// CanonicalQueryString decodes the query, sorts pairs stably by key (a
// repeated key keeps its values in their original relative order), then
// re-encodes key and value under the strict unreserved set.
func CanonicalQueryString(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	var pairs []queryPair
	order := 0
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		var k, v string
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			k, v = part[:idx], part[idx+1:]
		} else {
			k, v = part, ""
		}
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			val = v
		}
		pairs = append(pairs, queryPair{key: key, value: val, order: order})
		order++
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].key < pairs[j].key
	})

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, escapeStrict(p.key)+"="+escapeStrict(p.value))
	}
	return strings.Join(parts, "&")
}

// CanonicalHeaders builds the signed-headers list and the canonical headers
// block from the set of header names the caller wants signed. Names are
// lowercased; authorization, content-length and user-agent are dropped
// unconditionally; values are trimmed (not collapsed) and joined with ",".
func CanonicalHeaders(header http.Header, names []string) (signedHeaders, canonicalHeaders string) {
	type entry struct {
		name   string
		values []string
	}

	seen := map[string]*entry{}
	var ordered []*entry

	for _, raw := range names {
		lower := strings.ToLower(raw)
		if _, ignored := IgnoredHeaders[lower]; ignored {
			continue
		}
		if _, ok := seen[lower]; ok {
			continue
		}
		vals := header.Values(raw)
		trimmed := make([]string, 0, len(vals))
		for _, v := range vals {
			trimmed = append(trimmed, strings.TrimSpace(v))
		}
		e := &entry{name: lower, values: trimmed}
		seen[lower] = e
		ordered = append(ordered, e)
	}

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].name < ordered[j].name })

	signedNames := make([]string, 0, len(ordered))
	var b strings.Builder
	for _, e := range ordered {
		signedNames = append(signedNames, e.name)
		b.WriteString(e.name)
		b.WriteString(":")
		b.WriteString(strings.Join(e.values, ","))
		b.WriteString("\n")
	}

	return strings.Join(signedNames, ";"), b.String()
}

// HeaderNames returns every header name present on h, suitable as the
// candidate list passed to CanonicalHeaders when signing "all headers".
func HeaderNames(h http.Header) []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	return names
}
