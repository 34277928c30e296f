// File: internal/services/likelihood/vocabulary.go
package likelihood

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary extracts symptom mentions from free text.
type Vocabulary interface {
	Extract(text string) map[string]int
}

type phrase struct {
	text      string
	canonical string
	pattern   *regexp.Regexp
}

// LexiconVocabulary counts whole-word mentions of known terms. Each alias is
// folded into its canonical term. Longer phrases are matched first and
// removed from the text, so "chest pain" is not also counted as "pain".
type LexiconVocabulary struct {
	phrases []phrase
}

// vocabularyFile is the YAML layout:
//
//	symptoms:
//	  shortness of breath: [sob, dyspnea]
//	  fever: []
type vocabularyFile struct {
	Symptoms map[string][]string `yaml:"symptoms"`
}

// NewLexiconVocabulary builds a vocabulary from canonical terms and their aliases.
func NewLexiconVocabulary(terms map[string][]string) *LexiconVocabulary {
	aliases := make(map[string]string)
	for canonical, alts := range terms {
		c := strings.ToLower(strings.TrimSpace(canonical))
		if c == "" {
			continue
		}
		aliases[c] = c
		for _, a := range alts {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				aliases[a] = c
			}
		}
	}

	v := &LexiconVocabulary{phrases: make([]phrase, 0, len(aliases))}
	for text, canonical := range aliases {
		v.phrases = append(v.phrases, phrase{
			text:      text,
			canonical: canonical,
			pattern:   regexp.MustCompile(`\b` + regexp.QuoteMeta(text) + `\b`),
		})
	}
	sort.Slice(v.phrases, func(i, j int) bool {
		if len(v.phrases[i].text) != len(v.phrases[j].text) {
			return len(v.phrases[i].text) > len(v.phrases[j].text)
		}
		return v.phrases[i].text < v.phrases[j].text
	})
	return v
}

// LoadVocabulary reads a YAML vocabulary file. An empty path yields an empty
// vocabulary.
func LoadVocabulary(path string) (*LexiconVocabulary, error) {
	if path == "" {
		return NewLexiconVocabulary(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var file vocabularyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	return NewLexiconVocabulary(file.Symptoms), nil
}

func (v *LexiconVocabulary) Len() int { return len(v.phrases) }

func (v *LexiconVocabulary) Extract(text string) map[string]int {
	counts := make(map[string]int)
	t := " " + strings.ToLower(text) + " "
	for _, p := range v.phrases {
		hits := p.pattern.FindAllStringIndex(t, -1)
		if len(hits) == 0 {
			continue
		}
		counts[p.canonical] += len(hits)
		t = p.pattern.ReplaceAllString(t, " ")
	}
	return counts
}
