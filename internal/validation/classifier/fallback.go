package classifier

import (
	"strings"

	"docgate/internal/validation/models"
)

// filenameKeywords maps filename fragments to document types, checked in
// order so more specific fragments win.
var filenameKeywords = []struct {
	fragment string
	docType  string
}{
	{"passport", "passport"},
	{"driver", "drivers license"},
	{"driving", "drivers license"},
	{"licence", "drivers license"},
	{"license", "drivers license"},
	{"residence", "residence permit"},
	{"permit", "work permit"},
	{"visa", "visa"},
	{"national_id", "national id"},
	{"national-id", "national id"},
	{"id_card", "national id"},
	{"id-card", "national id"},
	{"idcard", "national id"},
	{"birth", "birth certificate"},
}

// FromFilename is the deterministic fallback used when the model call fails:
// keyword inference over the filename with low confidence.
func FromFilename(filename string) models.Classification {
	name := strings.ToLower(filename)
	result := models.Classification{
		DocumentType: "unknown",
		Confidence:   fallbackConfidence,
		Source:       "filename",
	}
	for _, kw := range filenameKeywords {
		if strings.Contains(name, kw.fragment) {
			result.DocumentType = kw.docType
			break
		}
	}
	return result
}
