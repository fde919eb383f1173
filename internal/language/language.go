// Package language normalizes target-language codes supplied by the frontend
// into base codes shared by the transcription, translation, and synthesis
// services.
package language

import (
	"strings"

	"golang.org/x/text/language"
)

type entry struct {
	code    string   // base code (e.g. "zh")
	display string   // human-readable name
	words   []string // full word forms accepted as input
}

var languages = []entry{
	{"zh", "Chinese", []string{"chinese", "中文"}},
	{"en", "English", []string{"english"}},
	{"ja", "Japanese", []string{"japanese"}},
	{"ko", "Korean", []string{"korean"}},
	{"es", "Spanish", []string{"spanish"}},
	{"fr", "French", []string{"french"}},
	{"de", "German", []string{"german"}},
	{"it", "Italian", []string{"italian"}},
	{"pt", "Portuguese", []string{"portuguese"}},
	{"ru", "Russian", []string{"russian"}},
	{"ar", "Arabic", []string{"arabic"}},
	{"hi", "Hindi", []string{"hindi"}},
	{"th", "Thai", []string{"thai"}},
	{"vi", "Vietnamese", []string{"vietnamese"}},
}

var (
	byCode map[string]*entry
	byWord map[string]*entry
)

func init() {
	byCode = make(map[string]*entry, len(languages))
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode[e.code] = e
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

// Normalize reduces any recognized language input to a base code: BCP 47 tags
// are stripped of region and script ("zh-CN" becomes "zh"), full word forms
// are mapped ("chinese" becomes "zh"). Unrecognized input returns empty.
func Normalize(code string) string {
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" {
		return ""
	}
	if e, ok := byWord[trimmed]; ok {
		return e.code
	}
	if e, ok := byCode[trimmed]; ok {
		return e.code
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	normalized := base.String()
	if _, ok := byCode[normalized]; ok {
		return normalized
	}
	if len(normalized) == 2 {
		return normalized
	}
	return ""
}

// DisplayName returns a human-readable name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if normalized := Normalize(code); normalized != "" {
		if e, ok := byCode[normalized]; ok {
			return e.display
		}
		return strings.ToUpper(normalized)
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
