package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mkartavenko/taskhub/internal/tokenx"
)

// getStatus builds the prompt decoration: the signed-in user's email and,
// when readable, the access token expiry.
func (a *App) getStatus(ctx context.Context) string {
	st := a.session.State()
	if !st.IsAuthenticated || st.User == nil {
		return ""
	}

	s := st.User.Email
	if pair, err := a.store.Get(ctx); err == nil && pair.AccessToken != "" {
		if exp, err := tokenx.ExpiresAt(pair.AccessToken); err == nil {
			s = fmt.Sprintf("%s exp %s", s, exp.Local().Format(time.Kitchen))
		}
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) Root(ctx context.Context) {

	fmt.Fprintln(a.out, "Welcome to TaskHub CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Fprintf(a.out, "taskhub %s> ", a.getStatus(ctx))
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
				fmt.Fprintln(a.out, "Available commands: list, show <id>, add, edit <id>, done <id>, delete <id>, whoami, profile, passwd, logout, exit")
			} else {
				fmt.Fprintln(a.out, "Available commands: register, login, exit")
			}

		case "register":
			a.Register(ctx)
		case "login":
			a.Login(ctx)
		case "logout":
			a.Logout(ctx)
		case "whoami":
			a.whoami(ctx)
		case "profile":
			a.updateProfile(ctx)
		case "passwd":
			a.changePassword(ctx)
		case "list":
			a.list(ctx, args)
		case "show":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: show <id>")
				continue
			}
			a.show(ctx, args[0])
		case "add":
			a.add(ctx)
		case "edit":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: edit <id>")
				continue
			}
			a.edit(ctx, args[0])
		case "done":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: done <id>")
				continue
			}
			a.done(ctx, args[0])
		case "delete":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: delete <id>")
				continue
			}
			a.delete(ctx, args[0])
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}
	}

}
