package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/tastekeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-b string   store backend: mem, postgres or gateway
//	-d string   PostgreSQL DSN
//	-g string   gateway base URL (e.g., "http://127.0.0.1:8080")
//	-s string   token HMAC secret
//	-t int      request timeout, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with the -config flag.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-b", "-d", "-g", "-s", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.Backend, "b", config.Backend, "store backend (mem, postgres, gateway)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.GatewayURL, "g", config.GatewayURL, "gateway base URL")
	fs.StringVar(&config.TokenSecret, "s", config.TokenSecret, "token secret")

	requestTimeout := fs.Int("t", int(config.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
