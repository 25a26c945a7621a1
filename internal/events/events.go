// Package events fans out state-change notifications to live subscribers.
//
// Payloads are opaque bytes (JSON in practice). Delivery is at-most-once and
// best effort: a slow subscriber may miss events, and the next GET of the
// resource is always authoritative.
package events

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("event bus closed")

// Handler receives one event payload. Handlers must not block for long.
type Handler func(data []byte)

// Subscription is an active subscription.
type Subscription interface {
	Unsubscribe() error
}

// Publisher publishes payloads on a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Bus is a subject-addressed publish/subscribe transport.
type Bus interface {
	Publisher
	Subscribe(subject string, h Handler) (Subscription, error)
	Close() error
}

// ScreenSubject is the subject carrying state events of one map screen.
func ScreenSubject(screenID string) string {
	return fmt.Sprintf("explorer.screen.%s", screenID)
}

// SessionSubject is the subject carrying session-change events of one user.
func SessionSubject(userID string) string {
	return fmt.Sprintf("explorer.session.%s", userID)
}
