package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
)

func (a *App) getStatus() string {
	if owner := a.ids.Current(); owner != "" {
		return fmt.Sprintf("(%s)", owner)
	}
	return ""
}

// Root runs the interactive command loop until the user quits or stdin
// closes. Command handlers report their own errors; the loop only does I/O
// and dispatch.
func (a *App) Root(ctx context.Context) {

	log.Println("Welcome to the taste diary (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("diary %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Println("Available commands: (l)ist, add, edit <id>, rm <id>, later, addlater, editlater <id>, rmlater <id>, visited <id>, refresh, logout, exit")
			} else {
				fmt.Println("Available commands: login, exit")
			}

		case "login":
			_ = a.Login(ctx)
		case "logout":
			_ = a.Logout(ctx)
		case "l", "list":
			a.list(ctx)
		case "add":
			a.addLog(ctx)
		case "edit":
			if len(args) == 0 {
				fmt.Println("Usage: edit <id>")
				continue
			}
			a.editLog(ctx, args[0])
		case "rm":
			if len(args) == 0 {
				fmt.Println("Usage: rm <id>")
				continue
			}
			a.deleteLog(ctx, args[0])
		case "later":
			a.listLater(ctx)
		case "addlater":
			a.addLater(ctx)
		case "editlater":
			if len(args) == 0 {
				fmt.Println("Usage: editlater <id>")
				continue
			}
			a.editLater(ctx, args[0])
		case "rmlater":
			if len(args) == 0 {
				fmt.Println("Usage: rmlater <id>")
				continue
			}
			a.deleteLater(ctx, args[0])
		case "visited":
			if len(args) == 0 {
				fmt.Println("Usage: visited <id>")
				continue
			}
			a.markVisited(ctx, args[0])
		case "refresh":
			a.refresh(ctx)
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}
