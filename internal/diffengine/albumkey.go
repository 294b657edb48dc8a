// file: internal/diffengine/albumkey.go
// version: 1.0.0
// guid: 6d7e8f9a-0b1c-4d2e-3f4a-5b6c7d8e9f0a

package diffengine

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lowercaser = cases.Lower(language.Und)

// AlbumKey normalizes an album title into the secondary identity key: NFKC
// so "Ａｌｂｕｍ" and "Album" collapse, then Unicode-aware lowercasing, then
// whitespace strip. Fingerprint alone would merge the same recording on
// different albums; the album key keeps greatest-hits copies distinct.
func AlbumKey(album string) string {
	return strings.TrimSpace(lowercaser.String(norm.NFKC.String(album)))
}
