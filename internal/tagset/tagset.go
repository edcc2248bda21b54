package tagset

import (
	"sort"
	"strconv"

	"github.com/benvon/wordtag/internal/models"
)

// Tag is one entry of the Penn Treebank tagset
type Tag struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// Category is an umbrella display label summing several tags
type Category struct {
	Name string   `json:"name" yaml:"name"`
	Tags []string `json:"tags" yaml:"tags"`
}

// Row is one line of a rendered result view
type Row struct {
	Name  string  `json:"name" yaml:"name"`
	Code  string  `json:"code,omitempty" yaml:"code,omitempty"`
	Value float64 `json:"value" yaml:"value"`
}

// Formatted returns the row value in the display format
func (r Row) Formatted() string {
	return FormatCount(r.Value)
}

const (
	WordsLabel     = "Words"
	SentencesLabel = "Sentences"
)

var pennTreebank = []Tag{
	{Code: "CC", Name: "Coordinating Conjunction"},
	{Code: "CD", Name: "Cardinal Number"},
	{Code: "DT", Name: "Determiner"},
	{Code: "EX", Name: "Existential there"},
	{Code: "FW", Name: "Foreign Word"},
	{Code: "IN", Name: "Preposition or Subordinating Conjunction"},
	{Code: "JJ", Name: "Adjective"},
	{Code: "JJR", Name: "Adjective, comparative"},
	{Code: "JJS", Name: "Adjective, superlative"},
	{Code: "LS", Name: "List item marker"},
	{Code: "MD", Name: "Modal"},
	{Code: "NN", Name: "Noun, singular or mass"},
	{Code: "NNS", Name: "Noun, plural"},
	{Code: "NNP", Name: "Proper noun, singular"},
	{Code: "NNPS", Name: "Proper noun, plural"},
	{Code: "PDT", Name: "Predeterminer"},
	{Code: "POS", Name: "Possessive ending"},
	{Code: "PRP", Name: "Personal pronoun"},
	{Code: "PRP$", Name: "Possessive pronoun"},
	{Code: "RB", Name: "Adverb"},
	{Code: "RBR", Name: "Adverb, comparative"},
	{Code: "RBS", Name: "Adverb, superlative"},
	{Code: "RP", Name: "Particle"},
	{Code: "SYM", Name: "Symbol"},
	{Code: "TO", Name: "To"},
	{Code: "UH", Name: "Interjection"},
	{Code: "VB", Name: "Verb, base form"},
	{Code: "VBD", Name: "Verb, past tense"},
	{Code: "VBG", Name: "Verb, gerund or present participle"},
	{Code: "VBN", Name: "Verb, past participle"},
	{Code: "VBP", Name: "Verb, non-3rd person singular present"},
	{Code: "VBZ", Name: "Verb, 3rd person singular present"},
	{Code: "WDT", Name: "Wh-determiner"},
	{Code: "WP", Name: "Wh-pronoun"},
	{Code: "WP$", Name: "Possessive wh-pronoun"},
	{Code: "WRB", Name: "Wh-adverb"},
}

var categories = []Category{
	{Name: "Adjective", Tags: []string{"JJ", "JJR", "JJS"}},
	{Name: "Adverb", Tags: []string{"RB", "RBR", "RBS", "WRB"}},
	{Name: "Conjunction", Tags: []string{"CC"}},
	{Name: "Determiner", Tags: []string{"DT"}},
	{Name: "Modal Verb", Tags: []string{"MD"}},
	{Name: "Noun", Tags: []string{"NN", "NNS"}},
	{Name: "Preposition", Tags: []string{"IN"}},
	{Name: "Pronoun", Tags: []string{"PRP", "PRP$", "WP", "WP$"}},
	{Name: "Proper Noun", Tags: []string{"NNP", "NNPS"}},
	{Name: "Verb (base)", Tags: []string{"VB"}},
	{Name: "Verb (gerund)", Tags: []string{"VBG"}},
	{Name: "Verb (non-3rd-sg present)", Tags: []string{"VBP"}},
	{Name: "Verb (past participle)", Tags: []string{"VBN"}},
	{Name: "Verb (past tense)", Tags: []string{"VBD"}},
	{Name: "Verb (3rd-sg present)", Tags: []string{"VBZ"}},
	{Name: "Wh-determiner", Tags: []string{"WDT"}},
}

var (
	sortedTags []Tag
	byCode     map[string]Tag
)

func init() {
	sortedTags = make([]Tag, len(pennTreebank))
	copy(sortedTags, pennTreebank)
	sort.Slice(sortedTags, func(i, j int) bool {
		return sortedTags[i].Name < sortedTags[j].Name
	})

	byCode = make(map[string]Tag, len(pennTreebank))
	for _, t := range pennTreebank {
		byCode[t.Code] = t
	}
}

// Tags returns the Penn Treebank tagset sorted by name. The slice is a copy.
func Tags() []Tag {
	out := make([]Tag, len(sortedTags))
	copy(out, sortedTags)
	return out
}

// Categories returns the summary display categories in display order
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		out[i] = Category{Name: c.Name, Tags: append([]string(nil), c.Tags...)}
	}
	return out
}

// Lookup returns the tag for a code
func Lookup(code string) (Tag, bool) {
	t, ok := byCode[code]
	return t, ok
}

// TagRows returns one row per Penn Treebank tag, sorted by name. This is the
// row set written by the exporters.
func TagRows(counts models.TagCounts) []Row {
	rows := make([]Row, 0, len(sortedTags))
	for _, t := range sortedTags {
		rows = append(rows, Row{Name: t.Name, Code: t.Code, Value: counts.Get(t.Code)})
	}
	return rows
}

// FullView returns every tag row followed by the Words and Sentences rows
func FullView(counts models.TagCounts) []Row {
	return append(TagRows(counts), totalsRows(counts)...)
}

// SummaryView returns one row per display category followed by the Words
// and Sentences rows
func SummaryView(counts models.TagCounts) []Row {
	rows := make([]Row, 0, len(categories)+2)
	for _, c := range categories {
		rows = append(rows, Row{Name: c.Name, Value: counts.Sum(c.Tags...)})
	}
	return append(rows, totalsRows(counts)...)
}

func totalsRows(counts models.TagCounts) []Row {
	return []Row{
		{Name: WordsLabel, Value: counts.Words()},
		{Name: SentencesLabel, Value: counts.Sentences()},
	}
}

// FormatCount renders a count or average with at most six significant
// digits and no trailing zeros: 2, 2.5, 0.333333.
func FormatCount(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
