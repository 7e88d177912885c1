package gateway

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/tastekeeper/internal/store"
	"github.com/gorilla/websocket"
)

// wsEvent is the gateway's feed frame.
type wsEvent struct {
	Type       string    `json:"type"`
	Collection string    `json:"collection"`
	Owner      string    `json:"owner"`
	ID         string    `json:"id"`
	Row        store.Row `json:"row,omitempty"`
}

// Subscribe dials the gateway's WebSocket feed for one collection and owner.
// The initial dial failure is returned to the caller; later disconnects are
// retried with exponential backoff until the subscription is closed. Events
// missed while reconnecting are lost, which the engine tolerates: the next
// event or mutation refetches the whole collection anyway.
func (s *Store) Subscribe(ctx context.Context, collection, owner string, fn func(store.Event)) (store.Subscription, error) {
	conn, err := s.dialFeed(ctx, collection, owner)
	if err != nil {
		return nil, store.NewError("subscribe", collection, err)
	}

	sub := &feedSubscription{
		store:      s,
		collection: collection,
		owner:      owner,
		fn:         fn,
		done:       make(chan struct{}),
	}
	sub.setConn(conn)
	go sub.readLoop(ctx)
	return sub, nil
}

func (s *Store) dialFeed(ctx context.Context, collection, owner string) (*websocket.Conn, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/v1/collections/" + url.PathEscape(collection) + "/feed"
	u.RawQuery = url.Values{"owner": {owner}}.Encode()

	header := http.Header{}
	if token := s.bearer(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

type feedSubscription struct {
	store      *Store
	collection string
	owner      string
	fn         func(store.Event)

	done   chan struct{}
	closed sync.Once
	mu     sync.Mutex
	conn   *websocket.Conn
}

func (sub *feedSubscription) setConn(conn *websocket.Conn) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.conn = conn
}

func (sub *feedSubscription) current() *websocket.Conn {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.conn
}

func (sub *feedSubscription) Close() error {
	sub.closed.Do(func() { close(sub.done) })
	if conn := sub.current(); conn != nil {
		// Unblocks a pending ReadJSON.
		_ = conn.Close()
	}
	return nil
}

func (sub *feedSubscription) readLoop(ctx context.Context) {
	for {
		var ev wsEvent
		err := sub.current().ReadJSON(&ev)
		if err != nil {
			select {
			case <-sub.done:
				return
			default:
			}
			if !sub.reconnect(ctx, err) {
				return
			}
			continue
		}

		sub.fn(store.Event{
			Type:       store.EventType(ev.Type),
			Collection: ev.Collection,
			Owner:      ev.Owner,
			ID:         ev.ID,
			Row:        ev.Row,
		})
	}
}

func (sub *feedSubscription) reconnect(ctx context.Context, cause error) bool {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0

	for {
		wait := bo.NextBackOff()
		sub.store.log.Warn(ctx, "change feed disconnected",
			"collection", sub.collection, "error", cause, "retry_in", wait)

		select {
		case <-time.After(wait):
		case <-sub.done:
			return false
		case <-ctx.Done():
			return false
		}

		conn, err := sub.store.dialFeed(ctx, sub.collection, sub.owner)
		if err == nil {
			sub.setConn(conn)
			sub.store.log.Debug(ctx, "change feed reconnected", "collection", sub.collection)
			return true
		}
		cause = err
	}
}
