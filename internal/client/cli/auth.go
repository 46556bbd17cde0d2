package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/client/session"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errUsage = errors.New("usage")

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

func (a *App) credentials(args []string) (string, string, error) {
	username := ""
	if len(args) > 0 {
		username = args[0]
	} else {
		var err error
		if username, err = getSimpleText(a.reader, "Enter username", a.out); err != nil {
			return "", "", err
		}
	}
	if username == "" {
		return "", "", usage("username is required")
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

func (a *App) greet(u *models.User) {
	a.printf("Logged in as %s (%s)\n", u.Username, u.ID)
}

// Signup creates an account and logs it in.
func (a *App) Signup(ctx context.Context, args []string) error {
	username, password, err := a.credentials(args)
	if err != nil {
		return err
	}
	u, err := a.client.Session().Signup(ctx, username, password)
	if err != nil {
		return err
	}
	a.greet(u)
	return nil
}

func (a *App) Login(ctx context.Context, args []string) error {
	username, password, err := a.credentials(args)
	if err != nil {
		return err
	}
	u, err := a.client.Session().Login(ctx, username, password)
	if err != nil {
		return err
	}
	a.greet(u)
	return nil
}

// Logout ends the session. Local data and queued changes are kept.
func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.client.Session().Logout(ctx); err != nil {
		if errors.Is(err, session.ErrNotLoggedIn) {
			a.printf("Not logged in\n")
			return nil
		}
		return err
	}
	a.printf("Logged out\n")
	return nil
}

func (a *App) Whoami(_ context.Context, _ []string) error {
	u := a.client.Session().ActiveUser()
	if u == nil {
		a.printf("Not logged in\n")
		return nil
	}
	if exp := a.client.Session().ExpiresAt(); !exp.IsZero() {
		a.printf("%s (%s), session expires %s\n", u.Username, u.ID, exp.Local().Format("2006-01-02 15:04"))
		return nil
	}
	a.printf("%s (%s)\n", u.Username, u.ID)
	return nil
}
