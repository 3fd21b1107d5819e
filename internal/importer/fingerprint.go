package importer

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/seanharte/mnemo/internal/parser"
)

// normalize cleans each card field and joins them with newlines so that
// whitespace, casing, and line-ending differences do not change identity,
// while field boundaries still do.
func normalize(card parser.Card) string {
	clean := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}
	return strings.Join([]string{clean(card.Front), clean(card.Back), clean(card.Context)}, "\n")
}

// Fingerprint returns the SHA-256 of a card's normalized content as a hex
// string. Re-importing unchanged content therefore resolves to the same card.
func Fingerprint(card parser.Card) string {
	sum := sha256.Sum256([]byte(normalize(card)))
	return fmt.Sprintf("%x", sum)
}
