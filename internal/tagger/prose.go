package tagger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/benvon/wordtag/internal/models"
	"github.com/jdkato/prose/tag"
	"github.com/jdkato/prose/tokenize"
)

// ProseTagger tags English text with prose's averaged perceptron model.
// Text is split with the Punkt sentence tokenizer and then the Treebank word
// tokenizer, so tokens follow Penn Treebank conventions ("``", "''", "n't").
type ProseTagger struct {
	mu     sync.Mutex
	tagger *tag.PerceptronTagger
}

// LoadProse decodes the embedded perceptron model. This is the slow step that
// the Gate runs in the background.
func LoadProse(ctx context.Context) (t Tagger, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			t = nil
			err = fmt.Errorf("failed to load perceptron model: %v", r)
		}
	}()
	return &ProseTagger{tagger: tag.NewPerceptronTagger()}, nil
}

// Tag implements Tagger
func (p *ProseTagger) Tag(ctx context.Context, text string) (models.TaggedSequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return models.TaggedSequence{}, nil
	}

	words := tokenize.TextToWords(text)
	if len(words) == 0 {
		return models.TaggedSequence{}, nil
	}

	p.mu.Lock()
	tagged := p.tagger.Tag(words)
	p.mu.Unlock()

	seq := make(models.TaggedSequence, 0, len(tagged))
	for _, tok := range tagged {
		seq = append(seq, models.TaggedToken{Text: tok.Text, Tag: tok.Tag})
	}
	return seq, nil
}

var _ Tagger = (*ProseTagger)(nil)
