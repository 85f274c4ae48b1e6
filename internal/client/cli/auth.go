package cli

import (
	"context"
	"fmt"

	"github.com/mkartavenko/taskhub/internal/client/api"
	"github.com/mkartavenko/taskhub/internal/shared"
)

func (a *App) Login(ctx context.Context) {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}

	password, err := GetPassword(a.out, "Enter password")
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	defer shared.WipeByteArray(password)

	// failure is already reported through the notifier
	_ = a.session.Login(ctx, email, string(password))
}

func (a *App) Register(ctx context.Context) {
	name, err := GetSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}

	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}

	password, err := GetPassword(a.out, "Enter password")
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	defer shared.WipeByteArray(password)

	_ = a.session.Register(ctx, name, email, string(password))
}

func (a *App) Logout(ctx context.Context) {
	a.session.Logout(ctx)
}

func (a *App) whoami(ctx context.Context) {
	st := a.session.State()
	if !st.IsAuthenticated || st.User == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return
	}
	u := st.User
	fmt.Fprintf(a.out, "%s <%s>\n", u.Name, u.Email)
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(a.out, "Member since %s\n", u.CreatedAt.Format("2006-01-02"))
	}
}

func (a *App) updateProfile(ctx context.Context) {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not logged in")
		return
	}

	name, err := GetSimpleText(a.reader, "New name (leave empty to keep)", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	email, err := GetSimpleText(a.reader, "New email (leave empty to keep)", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}

	if name == "" && email == "" {
		fmt.Fprintln(a.out, "Nothing to change")
		return
	}

	_ = a.session.UpdateProfile(ctx, api.ProfilePatch{Name: name, Email: email})
}

func (a *App) changePassword(ctx context.Context) {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not logged in")
		return
	}

	oldPw, err := GetPassword(a.out, "Current password")
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	defer shared.WipeByteArray(oldPw)

	newPw, err := GetPassword(a.out, "New password")
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	defer shared.WipeByteArray(newPw)

	_ = a.session.ChangePassword(ctx, string(oldPw), string(newPw))
}
