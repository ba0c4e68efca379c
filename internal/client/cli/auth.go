package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tubeaccounts/internal/client/client"
	"github.com/dmitrijs2005/tubeaccounts/internal/common"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errAvatarRequired = errors.New("avatar is required")

// Register asks for the profile, password and images, then creates the
// account. It does not log in.
func (a *App) Register(ctx context.Context) error {
	fullName, err := getSimpleText(a.reader, "Full name", a.out)
	if err != nil {
		return err
	}
	username, err := getSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	avatarPath, err := getSimpleText(a.reader, "Avatar image path", a.out)
	if err != nil {
		return err
	}
	avatar, err := LoadImage(avatarPath)
	if err != nil {
		return err
	}
	if avatar == nil {
		return errAvatarRequired
	}

	coverPath, err := getSimpleText(a.reader, "Cover image path (empty to skip)", a.out)
	if err != nil {
		return err
	}
	cover, err := LoadImage(coverPath)
	if err != nil {
		return err
	}

	ctx, cancel := a.requestCtx(ctx)
	defer cancel()

	user, err := a.client.Register(ctx, client.RegisterInput{
		FullName:   fullName,
		Username:   username,
		Email:      email,
		Password:   password,
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (%s). You can log in now.\n", user.Username, user.Email)
	return nil
}

// Login accepts a username or an email address.
func (a *App) Login(ctx context.Context) error {
	login, err := getSimpleText(a.reader, "Username or email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	var username, email string
	if strings.Contains(login, "@") {
		email = login
	} else {
		username = login
	}

	ctx, cancel := a.requestCtx(ctx)
	defer cancel()

	user, err := a.client.Login(ctx, username, email, password)
	if err != nil {
		return err
	}

	a.setUser(user.ID, user.Username)
	a.persistTokens(a.client.Tokens())
	a.setMode(ModeOnline)

	fmt.Fprintf(a.out, "Logged in as %s\n", user.Username)
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	ctx, cancel := a.requestCtx(ctx)
	defer cancel()

	user, err := a.client.Me(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s <%s>\n  username: %s\n  id:       %s\n  avatar:   %s\n",
		user.FullName, user.Email, user.Username, user.ID, user.AvatarURL)
	if user.CoverImageURL != "" {
		fmt.Fprintf(a.out, "  cover:    %s\n", user.CoverImageURL)
	}
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.requestCtx(ctx)
	defer cancel()

	if err := a.client.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Session refreshed")
	return nil
}

// Logout ends the session. The local session is forgotten even when the
// server cannot be reached.
func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.requestCtx(ctx)
	defer cancel()

	err := a.client.Logout(ctx)
	if err != nil && !errors.Is(err, client.ErrUnavailable) {
		return err
	}
	if err != nil {
		fmt.Fprintln(a.out, "Server unavailable, logged out locally")
		return nil
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	a.checkOnline(ctx)

	_, name := a.user()
	switch {
	case a.isLoggedIn() && name != "":
		fmt.Fprintf(a.out, "Server %s, logged in as %s\n", a.currentMode(), name)
	case a.isLoggedIn():
		fmt.Fprintf(a.out, "Server %s, logged in\n", a.currentMode())
	default:
		fmt.Fprintf(a.out, "Server %s, not logged in\n", a.currentMode())
	}
	return nil
}
