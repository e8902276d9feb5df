package sequence

import (
	"fmt"
	"strings"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/domain"
)

// SentimentSource reports the analyzed sentiment for a lead. The analysis
// itself is an external collaborator; the engine only consumes its output.
type SentimentSource interface {
	For(leadID string) (domain.Sentiment, error)
}

// SentimentFunc adapts a function to the SentimentSource port.
type SentimentFunc func(leadID string) (domain.Sentiment, error)

func (f SentimentFunc) For(leadID string) (domain.Sentiment, error) { return f(leadID) }

// StoreSentiment reads sentiment records written to the shared store by the
// conversation-analysis collaborator. A lead with no record is UNKNOWN,
// which never blocks.
type StoreSentiment struct {
	store  app.SharedStore
	reader string
}

// NewStoreSentiment returns a store-backed sentiment source.
func NewStoreSentiment(store app.SharedStore, reader string) *StoreSentiment {
	return &StoreSentiment{store: store, reader: reader}
}

type sentimentRecord struct {
	Sentiment string `json:"sentiment"`
}

func (s *StoreSentiment) For(leadID string) (domain.Sentiment, error) {
	entry, err := s.store.Read(app.CategorySentiment, leadID, s.reader)
	if err != nil {
		return domain.SentimentUnknown, fmt.Errorf("read sentiment for %s: %w", leadID, err)
	}
	if entry == nil {
		return domain.SentimentUnknown, nil
	}
	var rec sentimentRecord
	if err := entry.Decode(&rec); err != nil {
		return domain.SentimentUnknown, fmt.Errorf("decode sentiment for %s: %w", leadID, err)
	}
	switch domain.Sentiment(strings.ToUpper(rec.Sentiment)) {
	case domain.SentimentPositive:
		return domain.SentimentPositive, nil
	case domain.SentimentNeutral:
		return domain.SentimentNeutral, nil
	case domain.SentimentNegative:
		return domain.SentimentNegative, nil
	case domain.SentimentHostile:
		return domain.SentimentHostile, nil
	default:
		return domain.SentimentUnknown, nil
	}
}
