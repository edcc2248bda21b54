package analysis

import (
	"strings"

	"github.com/benvon/wordtag/internal/models"
)

// punctuationTags are the tags that do not count as words. Other
// punctuation tags such as ":" or "-LRB-" still do.
var punctuationTags = map[string]struct{}{
	`"`:  {},
	"''": {},
	"``": {},
	".":  {},
	",":  {},
}

// sentenceMarks are matched anywhere in a token's text; every token that
// contains at least one of them counts as one sentence.
const sentenceMarks = ".?!"

// Summarize builds the TagCounts for a tagged sequence in a single pass.
// With useAverages, every tag count and the word count are divided by the
// sentence count; the sentence count itself is left as is. When no sentence
// was detected the raw counts are returned.
func Summarize(seq models.TaggedSequence, useAverages bool) models.TagCounts {
	counts := make(models.TagCounts)
	words, sentences := 0, 0

	for _, tok := range seq {
		counts[tok.Tag]++
		if isWord(tok.Tag) {
			words++
		}
		if strings.ContainsAny(tok.Text, sentenceMarks) {
			sentences++
		}
	}

	if useAverages && sentences != 0 {
		n := float64(sentences)
		for tag := range counts {
			counts[tag] /= n
		}
		counts[models.KeyWords] = float64(words) / n
	} else {
		counts[models.KeyWords] = float64(words)
	}
	counts[models.KeySentences] = float64(sentences)

	return counts
}

func isWord(tag string) bool {
	_, punct := punctuationTags[tag]
	return !punct
}
