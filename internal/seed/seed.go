// Package seed loads the suggested-question catalogue and writes it to the
// storage backend at startup.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/repo"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

//go:embed questions.yaml
var defaultCatalogue []byte

// Catalogue is the parsed question file.
type Catalogue struct {
	Topics    []domain.Topic `yaml:"topics"`
	Questions []Entry        `yaml:"questions"`
}

// Entry is one question as written in the file.
type Entry struct {
	ID         string `yaml:"id"`
	Topic      string `yaml:"topic"`
	Text       string `yaml:"text"`
	Difficulty string `yaml:"difficulty"`
}

// epoch anchors seeded created_at values so re-seeding is a no-op and
// listing order follows file order.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Load reads the catalogue at path, or the embedded default when path is
// empty.
func Load(path string) (*Catalogue, error) {
	raw := defaultCatalogue
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalogue: %w", err)
		}
		raw = b
	}
	return Parse(raw)
}

// Parse decodes and validates a catalogue. Topic names are title-cased so
// "computer science" and "Computer Science" name the same topic.
func Parse(raw []byte) (*Catalogue, error) {
	var c Catalogue
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}

	title := cases.Title(language.English)
	known := make(map[string]struct{}, len(c.Topics))
	for i := range c.Topics {
		c.Topics[i].Name = title.String(strings.TrimSpace(c.Topics[i].Name))
		if c.Topics[i].ID == "" || c.Topics[i].Name == "" {
			return nil, fmt.Errorf("topic %d: id and name are required", i+1)
		}
		known[c.Topics[i].Name] = struct{}{}
	}

	ids := make(map[string]struct{}, len(c.Questions))
	for i := range c.Questions {
		q := &c.Questions[i]
		q.Topic = title.String(strings.TrimSpace(q.Topic))
		q.Text = strings.TrimSpace(q.Text)
		if q.ID == "" || q.Text == "" {
			return nil, fmt.Errorf("question %d: id and text are required", i+1)
		}
		if _, dup := ids[q.ID]; dup {
			return nil, fmt.Errorf("question %s: duplicate id", q.ID)
		}
		ids[q.ID] = struct{}{}
		if _, ok := known[q.Topic]; !ok {
			return nil, fmt.Errorf("question %s: unknown topic %q", q.ID, q.Topic)
		}
	}
	if len(c.Questions) == 0 {
		return nil, errors.New("catalogue has no questions")
	}
	return &c, nil
}

// Apply upserts every question. Running it again leaves the store
// unchanged.
func Apply(ctx context.Context, b storage.Backend, c *Catalogue) (int, error) {
	for i, e := range c.Questions {
		q := &domain.Question{
			ID:           e.ID,
			Topic:        e.Topic,
			QuestionText: e.Text,
			Difficulty:   e.Difficulty,
			CreatedAt:    epoch.Add(time.Duration(i) * time.Millisecond),
		}
		if err := repo.PutQuestion(ctx, b, q); err != nil {
			return i, fmt.Errorf("seed question %s: %w", e.ID, err)
		}
	}
	return len(c.Questions), nil
}
