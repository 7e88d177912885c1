// Package gateway implements the store capability as a client of a remote
// diary gateway: JSON over HTTP for queries and mutations, and a WebSocket
// change feed for subscriptions. The gateway itself is an external
// collaborator; this package only speaks its wire protocol.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/tastekeeper/internal/common"
	"github.com/dmitrijs2005/tastekeeper/internal/logging"
	"github.com/dmitrijs2005/tastekeeper/internal/store"
)

const requestTimeout = 15 * time.Second

// Store is a gateway-backed store.Store.
type Store struct {
	baseURL string
	http    *http.Client
	log     logging.Logger

	mu    sync.RWMutex
	token string
}

// New returns a client for the gateway at baseURL. token, if non-empty, is
// sent as a bearer token on every request, including the feed dial. It can
// be replaced later with SetToken once the user has logged in.
func New(baseURL, token string, log logging.Logger) *Store {
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
		log:     log,
	}
}

// SetToken replaces the bearer token used for subsequent requests. Feed
// connections established earlier keep their original token until they
// reconnect.
func (s *Store) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *Store) bearer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) Query(ctx context.Context, collection, owner string) ([]store.Row, error) {
	var rows []store.Row
	if err := s.do(ctx, http.MethodGet, s.rowsURL(collection, "", owner), nil, &rows); err != nil {
		return nil, store.NewError("query", collection, err)
	}
	return rows, nil
}

func (s *Store) Insert(ctx context.Context, collection, owner string, row store.Row) error {
	body := map[string]any{"owner": owner, "row": row}
	if err := s.do(ctx, http.MethodPost, s.rowsURL(collection, "", ""), body, nil); err != nil {
		return store.NewError("insert", collection, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id, owner string, patch store.Row) error {
	if err := s.do(ctx, http.MethodPatch, s.rowsURL(collection, id, owner), patch, nil); err != nil {
		return store.NewError("update", collection, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id, owner string) error {
	if err := s.do(ctx, http.MethodDelete, s.rowsURL(collection, id, owner), nil, nil); err != nil {
		return store.NewError("delete", collection, err)
	}
	return nil
}

func (s *Store) rowsURL(collection, id, owner string) string {
	u := s.baseURL + "/v1/collections/" + url.PathEscape(collection) + "/rows"
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	if owner != "" {
		u += "?owner=" + url.QueryEscape(owner)
	}
	return u
}

// do runs one JSON request. 404 maps to common.ErrorNotFound; any other
// non-2xx status becomes an error carrying the gateway's message.
func (s *Store) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := s.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrorNotFound
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
