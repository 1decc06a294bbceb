package quiz

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
)

// Catalog serves the preset quizzes stored in a JSON file.
// The file is re-read on every call so edits show up without a restart.
type Catalog struct {
	path   string
	logger zerolog.Logger
}

// NewCatalog creates a catalog backed by path.
func NewCatalog(path string, logger zerolog.Logger) *Catalog {
	return &Catalog{
		path:   path,
		logger: logger.With().Str("component", "quiz_catalog").Logger(),
	}
}

// List returns the summaries of every preset quiz.
func (c *Catalog) List(ctx context.Context) ([]Summary, error) {
	quizzes, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, q.Summary())
	}
	return out, nil
}

// Get returns the preset quiz with the given id.
func (c *Catalog) Get(ctx context.Context, id int) (Quiz, error) {
	quizzes, err := c.load(ctx)
	if err != nil {
		return Quiz{}, err
	}
	for _, q := range quizzes {
		if q.ID == id {
			return q, nil
		}
	}
	return Quiz{}, ErrQuizNotFound
}

func (c *Catalog) load(ctx context.Context) ([]Quiz, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn().Str("path", c.path).Msg("quiz file missing, serving empty catalog")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read quiz file: %w", err)
	}

	quizzes, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse quiz file: %w", err)
	}
	return quizzes, nil
}
