package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/dmitrijs2005/tastekeeper/internal/config"
	"github.com/dmitrijs2005/tastekeeper/internal/diary"
	"github.com/dmitrijs2005/tastekeeper/internal/identity"
	"github.com/dmitrijs2005/tastekeeper/internal/logging"
	"github.com/dmitrijs2005/tastekeeper/internal/store"
	"github.com/dmitrijs2005/tastekeeper/internal/store/gateway"
	"github.com/dmitrijs2005/tastekeeper/internal/store/memstore"
	"github.com/dmitrijs2005/tastekeeper/internal/store/pgstore"
	"github.com/dmitrijs2005/tastekeeper/internal/syncx"
)

// App wires the interactive diary client: a store backend, a token-based
// identity provider, and one live session per collection. Both sessions
// follow the identity, so login and logout swap the views automatically.
type App struct {
	config     *config.Config
	log        logging.Logger
	st         store.Store
	ids        *identity.TokenProvider
	logs       *syncx.Session[diary.VisitedLog, diary.VisitedLogDraft]
	later      *syncx.Session[diary.EatLaterEntry, diary.EatLaterDraft]
	reader     *bufio.Reader
	closeStore func() error

	notifyMu  sync.Mutex
	lastLogs  int
	lastLater int
}

func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {

	st, closeStore, err := openStore(ctx, c, log)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	ids := identity.NewTokenProvider([]byte(c.TokenSecret))

	a := &App{
		config:     c,
		log:        log,
		st:         st,
		ids:        ids,
		reader:     bufio.NewReader(os.Stdin),
		closeStore: closeStore,
		lastLogs:   -1,
		lastLater:  -1,
	}

	a.logs = syncx.NewSession(st, syncx.Collection[diary.VisitedLog, diary.VisitedLogDraft]{
		Name:     diary.CollectionLogs,
		FromRow:  diary.RowToLog,
		DraftRow: diary.LogDraftRow,
	}, log, func(snap syncx.Snapshot[diary.VisitedLog]) {
		a.notify("restaurant logs", len(snap.Items), snap.Loading, snap.Err, &a.lastLogs)
	})

	a.later = syncx.NewSession(st, syncx.Collection[diary.EatLaterEntry, diary.EatLaterDraft]{
		Name:     diary.CollectionEatLater,
		FromRow:  diary.RowToEatLater,
		DraftRow: diary.EatLaterDraftRow,
	}, log, func(snap syncx.Snapshot[diary.EatLaterEntry]) {
		a.notify("eat-later list", len(snap.Items), snap.Loading, snap.Err, &a.lastLater)
	})

	return a, nil
}

// notify prints a short notice when a view's item count settles on a new
// value, making feed-driven updates from other devices visible in the REPL.
func (a *App) notify(label string, n int, loading bool, errText string, last *int) {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	if loading || errText != "" || *last == n {
		return
	}
	*last = n
	log.Printf("%s updated (%d items)", label, n)
}

func openStore(ctx context.Context, c *config.Config, log logging.Logger) (store.Store, func() error, error) {
	switch c.Backend {
	case config.BackendMem:
		return memstore.New(), func() error { return nil }, nil
	case config.BackendPostgres:
		st, err := pgstore.New(ctx, c.DatabaseDSN, log)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case config.BackendGateway:
		return gateway.New(c.GatewayURL, "", log), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// Run follows the identity with both sessions and enters the REPL. It
// returns when the user quits or stdin is closed.
func (a *App) Run(ctx context.Context) {
	stopLogs := a.logs.Follow(ctx, a.ids)
	stopLater := a.later.Follow(ctx, a.ids)
	defer func() {
		stopLogs()
		stopLater()
		if err := a.closeStore(); err != nil {
			a.log.Error(ctx, "store close failed", "error", err)
		}
	}()

	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.ids.Current() != ""
}

// opCtx bounds one store operation with the configured request timeout.
func (a *App) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}
