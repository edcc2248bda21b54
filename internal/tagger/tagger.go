package tagger

import (
	"context"
	"errors"

	"github.com/benvon/wordtag/internal/models"
)

var (
	// ErrTaggerNotReady is returned when a request arrives before the tagger model finished loading
	ErrTaggerNotReady = errors.New("tagger not ready")
	// ErrTaggerUnavailable is returned when the tagger model could not be loaded
	ErrTaggerUnavailable = errors.New("tagger unavailable")
)

// Tagger tokenizes text and assigns one Penn Treebank tag per token.
// Implementations return tokens in source order and an empty sequence for
// empty or whitespace-only text.
type Tagger interface {
	Tag(ctx context.Context, text string) (models.TaggedSequence, error)
}

// LoadFunc loads the tagger model. It is called once per Gate.
type LoadFunc func(ctx context.Context) (Tagger, error)

// IsUnavailable reports whether err means the tagger cannot serve requests,
// either because it is still loading or because loading failed.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrTaggerNotReady) || errors.Is(err, ErrTaggerUnavailable)
}
