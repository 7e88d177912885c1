package pgstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/tastekeeper/internal/logging"
	"github.com/dmitrijs2005/tastekeeper/internal/store"
	"github.com/jackc/pgx/v5"
)

// channelName is the NOTIFY channel the diary_notify trigger publishes on.
const channelName = "diary_changes"

// listener holds one dedicated LISTEN connection and fans decoded
// notifications out to subscribers. The connection is re-established with
// exponential backoff after failures; notifications arriving while
// disconnected are lost, which the engine tolerates because any later event
// or mutation converges the view again.
type listener struct {
	dsn string
	log logging.Logger

	mu   sync.Mutex
	subs map[uint64]*feedSub
	next uint64
}

type feedSub struct {
	collection string
	owner      string
	fn         func(store.Event)
}

func newListener(dsn string, log logging.Logger) *listener {
	return &listener{dsn: dsn, log: log, subs: make(map[uint64]*feedSub)}
}

func (l *listener) subscribe(collection, owner string, fn func(store.Event)) store.Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	id := l.next
	l.subs[id] = &feedSub{collection: collection, owner: owner, fn: fn}
	return &feedSubscription{listener: l, id: id}
}

type feedSubscription struct {
	listener *listener
	id       uint64
}

func (s *feedSubscription) Close() error {
	s.listener.mu.Lock()
	defer s.listener.mu.Unlock()
	delete(s.listener.subs, s.id)
	return nil
}

func (l *listener) run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0

	for {
		err := l.listen(ctx, bo.Reset)
		if ctx.Err() != nil {
			return
		}

		wait := bo.NextBackOff()
		l.log.Warn(ctx, "change feed listener disconnected", "error", err, "retry_in", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

func (l *listener) listen(ctx context.Context, connected func()) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+channelName); err != nil {
		return err
	}
	connected()
	l.log.Debug(ctx, "change feed listener connected", "channel", channelName)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(ctx, notification.Payload)
	}
}

// dispatch decodes one trigger payload and invokes matching subscribers.
// Malformed payloads are logged and dropped.
func (l *listener) dispatch(ctx context.Context, payload string) {
	var msg struct {
		Collection string `json:"collection"`
		Type       string `json:"type"`
		Owner      string `json:"owner"`
		ID         string `json:"id"`
	}
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		l.log.Warn(ctx, "dropping malformed feed payload", "error", err)
		return
	}

	ev := store.Event{
		Type:       store.EventType(msg.Type),
		Collection: msg.Collection,
		Owner:      msg.Owner,
		ID:         msg.ID,
	}

	l.mu.Lock()
	fns := make([]func(store.Event), 0, len(l.subs))
	for _, sub := range l.subs {
		if sub.collection == ev.Collection && sub.owner == ev.Owner {
			fns = append(fns, sub.fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
