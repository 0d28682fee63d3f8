// Package textutil normalizes user-entered text before it goes on the wire.
package textutil

import "golang.org/x/text/unicode/norm"

// Normalize applies NFKC normalization so that visually identical input
// (full-width forms, composed vs decomposed characters) compares and stores
// consistently server-side.
func Normalize(s string) string {
	return norm.NFKC.String(s)
}
