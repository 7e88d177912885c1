package cli

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/dmitrijs2005/tastekeeper/internal/common"
	"github.com/dmitrijs2005/tastekeeper/internal/config"
	"github.com/dmitrijs2005/tastekeeper/internal/identity"
	"github.com/dmitrijs2005/tastekeeper/internal/logging"
	"github.com/stretchr/testify/require"
)

func stubToken(t *testing.T, token string) func() {
	t.Helper()
	orig := getToken
	getToken = func(_ io.Writer) (string, error) { return token, nil }
	return func() { getToken = orig }
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()

	app, err := NewApp(context.Background(), cfg, logging.NewJSON(io.Discard))
	require.NoError(t, err)
	return app
}

func TestLogin_ValidToken(t *testing.T) {
	app := newTestApp(t)

	token, err := identity.GenerateToken("u1", []byte(app.config.TokenSecret), time.Minute)
	require.NoError(t, err)
	restore := stubToken(t, token)
	defer restore()

	require.NoError(t, app.Login(context.Background()))
	require.True(t, app.isLoggedIn())
	require.Equal(t, "u1", app.ids.Current())
}

func TestLogin_InvalidToken(t *testing.T) {
	app := newTestApp(t)

	restore := stubToken(t, "not-a-token")
	defer restore()

	err := app.Login(context.Background())
	require.ErrorIs(t, err, common.ErrInvalidToken)
	require.False(t, app.isLoggedIn())
}

func TestLogout_ClearsIdentity(t *testing.T) {
	app := newTestApp(t)

	token, err := identity.GenerateToken("u1", []byte(app.config.TokenSecret), time.Minute)
	require.NoError(t, err)
	restore := stubToken(t, token)
	defer restore()

	require.NoError(t, app.Login(context.Background()))
	require.NoError(t, app.Logout(context.Background()))
	require.False(t, app.isLoggedIn())
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := &config.Config{Backend: "dynamodb"}
	_, _, err := openStore(context.Background(), cfg, logging.NewJSON(io.Discard))
	require.Error(t, err)
}
