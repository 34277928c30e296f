// File: internal/services/live/coherence.go
package live

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

var (
	fillerPattern      = regexp.MustCompile(`^(u+m+|u+h+|h+m+|a+h+|o+h+)[.!?]*$`)
	punctuationPattern = regexp.MustCompile(`^[\W_]+$`)
	answerPattern      = regexp.MustCompile(`^(okay|ok|yeah|yes|no|maybe|ndiyo|ndio|hapana|sawa)[.!?]*$`)
)

var noisePatterns = []*regexp.Regexp{
	fillerPattern,
	regexp.MustCompile(`^(okay|ok|yeah|yes|no|maybe)[.!?]*$`),
	regexp.MustCompile(`(thank you for watching|subscribe|like and subscribe)`),
	regexp.MustCompile(`(subtitles|captions|\bmusic\b|applause|laughter)`),
	punctuationPattern,
}

var questionOpeners = []string{
	"do", "does", "did", "is", "are", "was", "were", "have", "has", "had",
	"how", "what", "when", "where", "why", "which", "who", "can", "could",
	"any", "je", "una", "ulikuwa", "lini", "wapi", "nini", "kwa",
}

var clinicalTerms = []string{
	"pain", "ache", "hurt", "feel", "symptom", "sick", "ill", "doctor", "hospital",
	"medicine", "treatment", "diagnosis", "test", "exam", "blood", "pressure",
	"headache", "fever", "cough", "breath", "chest", "stomach", "back", "leg", "arm",
	"week", "month", "day", "year", "ago", "started", "began", "worse", "better",
	"maumivu", "homa", "kichwa", "kifua", "tumbo", "mguu", "mkono", "daktari",
	"hospitali", "dawa", "matibabu", "ugonjwa", "dalili", "kipimo",
}

var conversationalPhrases = []string{
	"i have", "i feel", "it started", "it hurts", "when i", "how long",
	"what about", "can you", "could you", "should i", "is it",
	"nina", "nimehisi", "inauma", "tangu", "wiki", "siku",
}

// strictContextChars is the transcript length after which off-topic finals
// of three or more words are dropped.
const strictContextChars = 100

// IsCoherent reports whether a final transcription looks like real speech
// from a consultation rather than transcriber noise.
func IsCoherent(text, transcript string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if len(t) < 3 {
		return false
	}
	for _, p := range noisePatterns {
		if p.MatchString(t) {
			return false
		}
	}
	if hasRepeatedRun(t, 5) {
		return false
	}
	if len(t) < 5 && isDigits(t) {
		return false
	}

	if len(strings.Fields(t)) >= 3 && len(transcript) > strictContextChars {
		if !containsAny(t, clinicalTerms) && !containsAny(t, conversationalPhrases) {
			return false
		}
	}
	return true
}

// IsCoherentReply is IsCoherent, except that a bare answer such as "yes",
// "no" or a short number is kept when it follows a clinician question.
func IsCoherentReply(text, transcript string, afterQuestion bool) bool {
	if afterQuestion && isShortAnswer(text) {
		return true
	}
	return IsCoherent(text, transcript)
}

func isShortAnswer(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" || fillerPattern.MatchString(t) || punctuationPattern.MatchString(t) {
		return false
	}
	return len(t) < 3 || answerPattern.MatchString(t)
}

// followsQuestion reports whether the last committed utterance is a clinician
// question.
func followsQuestion(utterances []domain.Utterance) bool {
	if len(utterances) == 0 {
		return false
	}
	last := utterances[len(utterances)-1]
	if last.Role != domain.RoleClinician {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(last.Text))
	if strings.HasSuffix(text, "?") {
		return true
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	first := strings.Trim(fields[0], ",.!")
	for _, w := range questionOpeners {
		if first == w {
			return true
		}
	}
	return false
}

func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run >= n {
				return true
			}
			continue
		}
		prev, run = r, 1
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
