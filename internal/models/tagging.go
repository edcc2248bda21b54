package models

import (
	"sort"
	"strings"
)

const (
	// KeyWords is the synthetic TagCounts key holding the word count
	KeyWords = "words"
	// KeySentences is the synthetic TagCounts key holding the sentence count
	KeySentences = "sentences"
)

// TaggedToken is a single token of the source text with its Penn Treebank tag
type TaggedToken struct {
	Text string `json:"text"`
	Tag  string `json:"tag"`
}

// String renders the token as token/tag
func (t TaggedToken) String() string {
	return t.Text + "/" + t.Tag
}

// TaggedSequence is the ordered output of the tagger for one input text
type TaggedSequence []TaggedToken

// Render joins every token as token/tag separated by a single space.
func (s TaggedSequence) Render() string {
	if len(s) == 0 {
		return ""
	}
	parts := make([]string, len(s))
	for i, tok := range s {
		parts[i] = tok.String()
	}
	return strings.Join(parts, " ")
}

// TagCounts maps a tag (or one of the synthetic keys) to a count or a
// per-sentence average. Absent keys read as zero.
type TagCounts map[string]float64

// Get returns the value for key, or 0 when the key was never counted.
// It never inserts into the map.
func (c TagCounts) Get(key string) float64 {
	if c == nil {
		return 0
	}
	return c[key]
}

// Words returns the word count (or per-sentence average)
func (c TagCounts) Words() float64 {
	return c.Get(KeyWords)
}

// Sentences returns the sentence count
func (c TagCounts) Sentences() float64 {
	return c.Get(KeySentences)
}

// Sum returns the sum of the given keys, treating absent keys as zero
func (c TagCounts) Sum(keys ...string) float64 {
	var total float64
	for _, k := range keys {
		total += c.Get(k)
	}
	return total
}

// TagTotal sums every part-of-speech key, excluding the synthetic ones
func (c TagCounts) TagTotal() float64 {
	var total float64
	for k, v := range c {
		if IsSyntheticKey(k) {
			continue
		}
		total += v
	}
	return total
}

// Tags returns the part-of-speech keys present in the counts, sorted
func (c TagCounts) Tags() []string {
	tags := make([]string, 0, len(c))
	for k := range c {
		if IsSyntheticKey(k) {
			continue
		}
		tags = append(tags, k)
	}
	sort.Strings(tags)
	return tags
}

// Clone returns an independent copy
func (c TagCounts) Clone() TagCounts {
	out := make(TagCounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// IsSyntheticKey reports whether key is "words" or "sentences"
func IsSyntheticKey(key string) bool {
	return key == KeyWords || key == KeySentences
}
