package documents

import (
	"strings"

	"github.com/google/uuid"
)

// shorthandDrops are filler words removed from customer names after
// the first word when building document filenames.
var shorthandDrops = map[string]bool{
	"logistics":      true,
	"transportation": true,
	"trans":          true,
	"group":          true,
	"llc":            true,
}

const shorthandPunctuation = ".,_-!@#$%^&*()=+"

// CustomerShorthand compresses a customer name for filenames: strip
// punctuation, drop filler words after the first, keep at most three
// words, and join them capitalized. All-uppercase words keep their
// casing.
func CustomerShorthand(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(shorthandPunctuation, r) {
			return -1
		}
		return r
	}, name)

	var kept []string
	for i, word := range strings.Fields(cleaned) {
		if i > 0 && shorthandDrops[strings.ToLower(word)] {
			continue
		}
		kept = append(kept, word)
		if len(kept) == 3 {
			break
		}
	}

	var b strings.Builder
	for _, word := range kept {
		if word == strings.ToUpper(word) {
			b.WriteString(word)
			continue
		}
		b.WriteString(strings.ToUpper(word[:1]))
		b.WriteString(strings.ToLower(word[1:]))
	}
	return b.String()
}

// DocumentName builds the base filename for a load document from the
// customer shorthand, invoice id, reference, and category. Empty parts
// drop out. No extension.
func DocumentName(customerName, invoiceID, reference string, category Category) string {
	parts := make([]string, 0, 4)
	for _, part := range []string{CustomerShorthand(customerName), invoiceID, reference, string(category)} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "_")
}

// ObjectKeyPair returns the display filename and the bucket object key
// for a document. The key carries a short random hash so re-merges
// never overwrite earlier objects.
func ObjectKeyPair(customerName, invoiceID, reference string, category Category) (filename, objectKey string) {
	name := DocumentName(customerName, invoiceID, reference, category)
	hash := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return name + ".pdf", name + "-" + hash + ".pdf"
}
