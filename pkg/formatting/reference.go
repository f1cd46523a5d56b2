package formatting

import (
	"math/rand/v2"
	"strings"
	"time"
)

const referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ReferenceSuffixLen is the number of random characters ending a reference code.
const ReferenceSuffixLen = 6

// Reference builds a human-readable code of the form PREFIX-YYYYMMDD-XXXXXX,
// where the date is taken from at in UTC and the suffix is random uppercase
// alphanumerics. Uniqueness is enforced by the caller's storage.
func Reference(prefix string, at time.Time) string {
	var b strings.Builder
	b.Grow(len(prefix) + 1 + 8 + 1 + ReferenceSuffixLen)

	b.WriteString(prefix)
	b.WriteByte('-')
	b.WriteString(at.UTC().Format("20060102"))
	b.WriteByte('-')
	for range ReferenceSuffixLen {
		b.WriteByte(referenceAlphabet[rand.IntN(len(referenceAlphabet))])
	}

	return b.String()
}
