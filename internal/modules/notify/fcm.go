// README: Best-effort FCM notification dispatcher.
package notify

import (
	"context"
	"log"

	"firebase.google.com/go/v4/messaging"

	"courier/internal/types"
)

// TokenSource resolves a user's registered device token. Satisfied by the
// location store.
type TokenSource interface {
	DeviceToken(ctx context.Context, userID types.ID) (string, error)
}

// Dispatcher sends fire-and-forget push notifications. Delivery failures
// are logged and dropped; no command ever waits on or retries a
// notification.
type Dispatcher struct {
	client *messaging.Client
	tokens TokenSource
}

func NewDispatcher(client *messaging.Client, tokens TokenSource) *Dispatcher {
	return &Dispatcher{client: client, tokens: tokens}
}

func (d *Dispatcher) Notify(ctx context.Context, userID types.ID, title, body string) {
	if d.client == nil {
		return
	}
	token, err := d.tokens.DeviceToken(ctx, userID)
	if err != nil || token == "" {
		// Users without a registered device simply miss the push; the
		// synchronizer view catches them up on next open.
		return
	}
	_, err = d.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	})
	if err != nil {
		log.Printf("notify: fcm send to %s: %v", userID, err)
	}
}
