package changefeed

import (
	"context"

	"prescription-share/internal/domain/sharegrants"
)

// GrantNotifier adapta el hub al contrato sharegrants.Notifier.
// Cada transición se publica en el topic de la receta, del médico emisor
// y, si aplica, de la cuenta vinculada.
type GrantNotifier struct {
	hub *Hub
}

func NewGrantNotifier(hub *Hub) *GrantNotifier {
	return &GrantNotifier{hub: hub}
}

func (n *GrantNotifier) PublishChange(_ context.Context, e sharegrants.ChangeEvent) {
	if n == nil || n.hub == nil {
		return
	}

	topics := []string{
		"prescription:" + e.PrescriptionID,
		"owner:" + e.OwnerUserID,
	}
	if e.AccountID != "" {
		topics = append(topics, "account:"+e.AccountID)
	}

	for _, topic := range topics {
		n.hub.Broadcast(topic, Event{
			Type:           string(e.Type),
			Topic:          topic,
			PrescriptionID: e.PrescriptionID,
			GrantID:        e.GrantID,
			AccountID:      e.AccountID,
			Timestamp:      e.OccurredAt,
		})
	}
}
