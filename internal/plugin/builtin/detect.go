package builtin

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/text/unicode/norm"
)

// LanguageScore is one candidate language with a normalized score.
type LanguageScore struct {
	Tag   language.Tag
	Score float64
}

// languageName returns the English display name of tag.
func languageName(tag language.Tag) string {
	if tag == language.Und {
		return "Unknown"
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// markerLanguage guesses a language from a handful of distinctive
// characters. It is the fallback when no word profiles are available.
func markerLanguage(text string) language.Tag {
	lower := strings.ToLower(text)
	switch {
	case strings.ContainsAny(lower, "ñ¿¡"):
		return language.Spanish
	case strings.ContainsAny(lower, "çœàé"):
		return language.French
	case strings.ContainsAny(lower, "ßüöä"):
		return language.German
	case strings.ContainsAny(lower, "الم"):
		return language.Arabic
	}
	return language.English
}

// scripts maps non-Latin scripts to the language reported for them.
// Kana is checked before Han so Japanese text is not reported as Chinese.
var scripts = []struct {
	table *unicode.RangeTable
	tag   language.Tag
}{
	{unicode.Hiragana, language.Japanese},
	{unicode.Katakana, language.Japanese},
	{unicode.Hangul, language.Korean},
	{unicode.Han, language.Chinese},
	{unicode.Arabic, language.Arabic},
	{unicode.Cyrillic, language.Russian},
	{unicode.Greek, language.Greek},
	{unicode.Hebrew, language.Hebrew},
	{unicode.Thai, language.Thai},
	{unicode.Devanagari, language.Hindi},
}

// stopwords are high-frequency words per Latin-script language.
var stopwords = map[language.Tag]string{
	language.English:    "the and of to in is that it for was on are with as be this have from or by not but what all were when we there can an your which their",
	language.French:     "le la les de des et est un une du en que qui dans pour pas sur au avec ce il elle nous vous sont mais ou",
	language.German:     "der die das und ist nicht ein eine zu den mit von sich des auf für im dem es ich sie wir auch wie aber",
	language.Spanish:    "el la los las de y que en un una es por con para no se del al lo como más pero sus le ya muy",
	language.Italian:    "il lo la gli le di e che un una è per non in con del della sono si ma come anche più questo",
	language.Portuguese: "o a os as de e que em um uma é do da para com não se no na por mais mas foi ao dos",
	language.Dutch:      "de het een en van is dat niet in op te zijn met voor er maar ook als bij aan om dit",
}

// diacritics add weight to languages that use them.
var diacritics = map[language.Tag]string{
	language.Spanish:    "ñ¿¡áíóú",
	language.French:     "çœàèéêëîïôûù",
	language.German:     "ßäöü",
	language.Portuguese: "ãõâêôç",
	language.Italian:    "àèéìòù",
}

// detector scores text against word profiles.
type detector struct {
	profiles map[language.Tag]map[string]bool
}

// newDetector builds the word profiles. It checks ctx between languages.
func newDetector(ctx context.Context) (*detector, error) {
	d := &detector{
		profiles: make(map[language.Tag]map[string]bool, len(stopwords)),
	}
	for tag, words := range stopwords {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set := make(map[string]bool)
		for _, w := range strings.Fields(words) {
			set[norm.NFC.String(w)] = true
		}
		d.profiles[tag] = set
	}
	return d, nil
}

// Scores returns candidate languages ordered by descending score. The
// scores sum to 1. Text with nothing to go on scores English at 1.
func (d *detector) Scores(text string) []LanguageScore {
	// Casers are stateful, so each call gets its own.
	text = norm.NFC.String(cases.Lower(language.Und).String(text))
	raw := make(map[language.Tag]float64)

	var latin, other int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.Is(unicode.Latin, r) {
			latin++
			for tag, set := range diacritics {
				if strings.ContainsRune(set, r) {
					raw[tag] += 0.5
				}
			}
			continue
		}
		for _, s := range scripts {
			if unicode.Is(s.table, r) {
				other++
				raw[s.tag]++
				break
			}
		}
	}

	if latin >= other {
		words := strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) })
		for _, w := range words {
			for tag, set := range d.profiles {
				if set[w] {
					raw[tag]++
				}
			}
		}
	} else {
		for tag := range diacritics {
			delete(raw, tag)
		}
	}

	return normalizeScores(raw)
}

func normalizeScores(raw map[language.Tag]float64) []LanguageScore {
	var total float64
	for _, v := range raw {
		total += v
	}
	if total == 0 {
		return []LanguageScore{{Tag: language.English, Score: 1}}
	}

	out := make([]LanguageScore, 0, len(raw))
	for tag, v := range raw {
		if v > 0 {
			out = append(out, LanguageScore{Tag: tag, Score: v / total})
		}
	}
	slices.SortFunc(out, func(a, b LanguageScore) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Tag.String(), b.Tag.String())
	})
	return out
}
