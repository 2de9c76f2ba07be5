package search

import (
	"context"

	"soulconnect/domain"
	"soulconnect/domain/event"
)

// IndexSink feeds every delivered message into the index. It is wired as
// a permanent sink on the router so indexing rides the same fan-out path
// as realtime delivery.
type IndexSink struct {
	index IMessageIndex
}

func NewIndexSink(index IMessageIndex) *IndexSink {
	return &IndexSink{index: index}
}

func (s *IndexSink) Consume(_ context.Context, evt event.DomainEvent) error {
	delivered, ok := evt.(event.MessageDelivered)
	if !ok {
		return nil
	}
	return s.index.Index(domain.Message{
		ID:         delivered.ID,
		Room:       delivered.Room,
		SenderID:   delivered.SenderID,
		SenderName: delivered.SenderName,
		Content:    delivered.Content,
		Kind:       delivered.Kind,
		SentAt:     delivered.At,
	})
}
