// Package consumer reads corpus-update events from Kafka and reloads the
// indexer engine when the ranker's own corpus changes.
package consumer

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/kafka"
)

// Reloader rebuilds the current index. *indexer.Engine implements it.
type Reloader interface {
	Reload(ctx context.Context) (*indexer.Snapshot, error)
}

// HandleCorpusUpdated returns a Kafka MessageHandler that reloads engine for
// updates to corpus and ignores all others. Undecodable messages are logged
// and committed so one bad event cannot wedge the partition; reload errors
// are returned so the message is retried.
func HandleCorpusUpdated(engine Reloader, corpus string) kafka.MessageHandler {
	logger := slog.Default().With("component", "corpus-consumer", "corpus", corpus)
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.CorpusUpdated](value)
		if err != nil {
			logger.Error("failed to decode corpus update",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if event.Name != corpus {
			logger.Debug("ignoring update for other corpus", "name", event.Name)
			return nil
		}

		logger.Info("corpus update received, reloading",
			"checksum", event.Checksum,
			"lines", event.Lines,
		)
		if _, err := engine.Reload(ctx); err != nil {
			return err
		}
		return nil
	}
}
