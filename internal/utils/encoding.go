package utils

import (
	"net/url"
	"strings"
)

// encodeURIComponent keeps these unescaped; url.QueryEscape does not.
var jsUnreserved = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes s the way the browser's encodeURIComponent does,
// so a path segment built from an ident matches what the web client sends.
func EncodeURIComponent(str string) string {
	return jsUnreserved.Replace(url.QueryEscape(str))
}

// JoinPath appends escaped segments to a base path.
func JoinPath(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, seg := range segments {
		b.WriteByte('/')
		b.WriteString(EncodeURIComponent(seg))
	}
	return b.String()
}
