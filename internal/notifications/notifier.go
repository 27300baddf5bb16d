package notifications

import (
	"context"

	"github.com/bitescout/BiteScoutAPI/internal/models"
	log "github.com/sirupsen/logrus"
)

// Publisher pushes a stored notification to the recipient's live connections.
// Delivery is best effort: a recipient with no live connection is not an error.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, n models.Notification) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, n models.Notification) error {
	return f(ctx, n)
}

// Discard is a Publisher that drops every push.
var Discard Publisher = PublisherFunc(func(context.Context, models.Notification) error { return nil })

// Notifier pushes notifications that are already persisted, typically after
// the transaction that created them commits.
type Notifier struct {
	store     *Store
	publisher Publisher
}

// NewNotifier wires a store and a publisher.
func NewNotifier(store *Store, publisher Publisher) *Notifier {
	if publisher == nil {
		publisher = Discard
	}
	return &Notifier{store: store, publisher: publisher}
}

// Push fans out already-persisted notifications, logging and swallowing failures.
func (n *Notifier) Push(ctx context.Context, rows ...models.Notification) {
	for _, row := range rows {
		if errPublish := n.publisher.Publish(ctx, row); errPublish != nil {
			log.WithError(errPublish).WithFields(log.Fields{
				"user_id":         row.UserID,
				"notification_id": row.ID,
			}).Warn("notification push failed")
		}
	}
}
