// Package ingestion loads corpus text from its configured source and defines
// the event exchanged when a stored corpus changes.
package ingestion

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/ingestion/extract"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/resilience"
)

// Loader produces the raw text of one corpus.
type Loader interface {
	Load(ctx context.Context) (string, error)
	// Describe names the source for logs, e.g. "file:data/corpus.txt".
	Describe() string
}

// CorpusUpdated is published after a corpus is stored or replaced.
type CorpusUpdated struct {
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	Lines     int       `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileLoader reads a corpus from a UTF-8 text file. Files ending in .html or
// .htm are reduced to their visible text.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(l.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", apperrors.ErrCorpusNotFound, l.Path)
	}
	if err != nil {
		return "", fmt.Errorf("reading corpus file %s: %w", l.Path, err)
	}
	if extract.IsHTML(l.Path) {
		return extract.HTMLText(bytes.NewReader(data))
	}
	return string(data), nil
}

func (l FileLoader) Describe() string { return "file:" + l.Path }

// InlineLoader serves text embedded in configuration.
type InlineLoader struct {
	Text string
}

func (l InlineLoader) Load(ctx context.Context) (string, error) {
	return l.Text, ctx.Err()
}

func (l InlineLoader) Describe() string { return "inline" }

// Querier is the subset of *sql.DB the Postgres loader needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PostgresLoader joins the lines of a stored corpus in position order.
type PostgresLoader struct {
	DB    Querier
	Name  string
	Retry resilience.RetryConfig
}

// Schema creates the corpus table. It is idempotent.
const Schema = `CREATE TABLE IF NOT EXISTS corpus_documents (
	corpus   TEXT    NOT NULL,
	position INTEGER NOT NULL,
	body     TEXT    NOT NULL,
	PRIMARY KEY (corpus, position)
)`

const selectCorpus = `SELECT body FROM corpus_documents WHERE corpus = $1 ORDER BY position`

func (l PostgresLoader) Load(ctx context.Context) (string, error) {
	var text string
	err := resilience.Retry(ctx, "load-corpus-"+l.Name, l.Retry, func() error {
		lines, err := l.query(ctx)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return resilience.Permanent(fmt.Errorf("%w: %q", apperrors.ErrCorpusNotFound, l.Name))
		}
		text = strings.Join(lines, "\n")
		return nil
	})
	return text, err
}

func (l PostgresLoader) query(ctx context.Context) ([]string, error) {
	rows, err := l.DB.QueryContext(ctx, selectCorpus, l.Name)
	if err != nil {
		return nil, fmt.Errorf("querying corpus %q: %w", l.Name, err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		lines = append(lines, body)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	return lines, nil
}

func (l PostgresLoader) Describe() string { return "postgres:" + l.Name }

// NewLoader picks the Loader for cfg.Source. db is only consulted for the
// postgres source and may be nil otherwise.
func NewLoader(cfg config.CorpusConfig, db Querier) (Loader, error) {
	switch cfg.Source {
	case config.SourceFile:
		return FileLoader{Path: cfg.Path}, nil
	case config.SourceInline:
		return InlineLoader{Text: cfg.Text}, nil
	case config.SourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("corpus source %q needs a postgres connection", cfg.Source)
		}
		return PostgresLoader{DB: db, Name: cfg.Name}, nil
	default:
		return nil, fmt.Errorf("unknown corpus source %q", cfg.Source)
	}
}
