package cli

import (
	"context"
	"fmt"
	"log"
	"os"
)

// getSimpleText and getToken are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getToken = GetToken

// Login reads an access token from the terminal and signs in as the owner it
// names. Both collection sessions follow the identity, so a successful login
// immediately starts loading that owner's data.
func (a *App) Login(_ context.Context) error {
	token, err := getToken(os.Stdout)
	if err != nil {
		return err
	}

	// The gateway backend authenticates with the same token.
	if ts, ok := a.st.(interface{ SetToken(string) }); ok {
		ts.SetToken(token)
	}

	owner, err := a.ids.SignInToken(token)
	if err != nil {
		log.Printf("Login unsuccessfull: %s", err.Error())
		return err
	}

	fmt.Printf("Logged in as %s\n", owner)
	return nil
}

// Logout signs out. The sessions clear their views synchronously.
func (a *App) Logout(_ context.Context) error {
	a.ids.SignOut()
	fmt.Println("Logged out")
	return nil
}
