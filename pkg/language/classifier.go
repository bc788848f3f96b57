package language

import (
	"strings"
	"unicode"
)

// Classifier guesses the language of an inbound message. Implementations
// are pure functions of the input string; the gate treats the result as
// advisory, never authoritative.
type Classifier interface {
	Classify(message string) string
}

// Heuristic is the default classifier: Unicode-script detection for
// non-Latin scripts plus small keyword lists for Latin-script languages.
// It is wrong sometimes. That is an accepted trade-off; swap in a real
// detector behind the Classifier interface if it matters.
type Heuristic struct{}

// Keyword lists for Latin-script languages. Only common function words
// that rarely appear in English text.
var (
	indonesianWords = []string{"yang", "dan", "tidak", "apa", "kamu", "saya", "aku", "bisa", "ini", "itu", "dengan", "untuk", "bagaimana", "kenapa", "terima kasih", "selamat"}
	spanishWords    = []string{"que", "como", "estás", "hola", "gracias", "por qué", "dónde", "quiero", "tienes", "puedes", "bueno", "también", "muy", "pero"}
	frenchWords     = []string{"bonjour", "merci", "pourquoi", "comment", "je suis", "tu es", "c'est", "avec", "très", "oui", "être", "vous"}
)

func (Heuristic) Classify(message string) string {
	if message == "" {
		return "en"
	}

	if code := classifyScript(message); code != "" {
		return code
	}

	lower := strings.ToLower(message)
	if code := classifyKeywords(lower); code != "" {
		return code
	}
	return "en"
}

// classifyScript returns a language code when the message contains a
// decisive amount of a non-Latin script, or "" for Latin text.
func classifyScript(message string) string {
	var kana, han, hangul, arabic int
	for _, r := range message {
		switch {
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			kana++
		case unicode.In(r, unicode.Han):
			han++
		case unicode.In(r, unicode.Hangul):
			hangul++
		case unicode.In(r, unicode.Arabic):
			arabic++
		}
	}

	switch {
	case kana > 0:
		// Kana is unambiguous; Han alone could still be Japanese, but
		// without kana we guess Chinese.
		return "ja"
	case hangul > 0:
		return "ko"
	case han > 0:
		return "zh"
	case arabic > 0:
		return "ar"
	}
	return ""
}

// classifyKeywords scores each Latin-script keyword list against the
// lowercased message and returns the best-scoring language. Ties go to
// the list checked first, keeping classification deterministic.
func classifyKeywords(lower string) string {
	type scored struct {
		code  string
		words []string
	}
	lists := []scored{
		{"id", indonesianWords},
		{"es", spanishWords},
		{"fr", frenchWords},
	}

	bestCode := ""
	bestScore := 0
	for _, l := range lists {
		score := 0
		for _, w := range l.words {
			if containsWord(lower, w) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestCode = l.code
		}
	}

	// One stray loanword is not evidence.
	if bestScore < 2 {
		return ""
	}
	return bestCode
}

// containsWord reports whether w appears in s on word boundaries.
// Multi-word entries match as plain substrings.
func containsWord(s, w string) bool {
	if strings.Contains(w, " ") || strings.Contains(w, "'") {
		return strings.Contains(s, w)
	}
	idx := 0
	for {
		i := strings.Index(s[idx:], w)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(w)
		startOK := start == 0 || !isWordRune(rune(s[start-1]))
		endOK := end == len(s) || !isWordRune(rune(s[end]))
		if startOK && endOK {
			return true
		}
		idx = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
