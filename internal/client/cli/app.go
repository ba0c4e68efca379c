package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/api"
	"github.com/dmitrijs2005/tubeaccounts/internal/client/client"
	"github.com/dmitrijs2005/tubeaccounts/internal/client/config"
	"github.com/dmitrijs2005/tubeaccounts/internal/client/tokenstore"
	"github.com/dmitrijs2005/tubeaccounts/internal/filex"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// accountClient is the part of client.GRPCClient the commands use.
type accountClient interface {
	Register(ctx context.Context, in client.RegisterInput) (*api.User, error)
	Login(ctx context.Context, username, email string, password []byte) (*api.User, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	Me(ctx context.Context) (*api.User, error)
	Ping(ctx context.Context) error
	Tokens() api.TokenPair
	SetTokens(p api.TokenPair)
	OnTokens(fn func(api.TokenPair))
	LoggedIn() bool
	Close() error
}

type sessionStore interface {
	Save(ctx context.Context, s tokenstore.Session) error
	Load(ctx context.Context) (*tokenstore.Session, error)
	Clear(ctx context.Context) error
	Close() error
}

type App struct {
	config   *config.Config
	client   accountClient
	sessions sessionStore
	reader   *bufio.Reader
	out      io.Writer

	mu       sync.Mutex
	userName string
	userID   string
	mode     Mode
}

func NewApp(c *config.Config) (*App, error) {

	if err := filex.EnsureParentDir(c.SessionDBPath); err != nil {
		return nil, err
	}

	store, err := tokenstore.Open(c.SessionDBPath)
	if err != nil {
		return nil, err
	}

	apiClient, err := client.NewAccountClient(c.ServerEndpointAddr)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return newApp(c, apiClient, store, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, ac accountClient, store sessionStore, in io.Reader, out io.Writer) *App {
	a := &App{
		config:   c,
		client:   ac,
		sessions: store,
		reader:   bufio.NewReader(in),
		out:      out,
	}
	ac.OnTokens(a.persistTokens)
	return a
}

// restoreSession loads the saved session, if any, into the client.
func (a *App) restoreSession(ctx context.Context) {
	sess, err := a.sessions.Load(ctx)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNoSession) {
			log.Printf("could not read saved session: %v", err)
		}
		return
	}

	a.setUser(sess.UserID, sess.Username)
	a.client.SetTokens(api.TokenPair{AccessToken: sess.AccessToken, RefreshToken: sess.RefreshToken})
}

// persistTokens mirrors every token change into the session store.
func (a *App) persistTokens(p api.TokenPair) {
	ctx := context.Background()

	if p.RefreshToken == "" {
		a.setUser("", "")
		if err := a.sessions.Clear(ctx); err != nil {
			log.Printf("could not clear saved session: %v", err)
		}
		return
	}

	id, name := a.user()
	err := a.sessions.Save(ctx, tokenstore.Session{
		UserID:       id,
		Username:     name,
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	})
	if err != nil {
		log.Printf("could not save session: %v", err)
	}
}

func (a *App) setUser(id, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userID, a.userName = id, name
}

func (a *App) user() (string, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userID, a.userName
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()
	if changed {
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) currentMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) isLoggedIn() bool {
	return a.client.LoggedIn()
}

func (a *App) getStatus() string {
	s := ""
	if _, name := a.user(); name != "" && a.isLoggedIn() {
		s = name + " "
	}
	if m := a.currentMode(); m != "" {
		s = s + string(m)
	}
	if s != "" {
		s = "(" + s + ")"
	}
	return s
}

func (a *App) Run(ctx context.Context) {
	defer a.close()

	a.restoreSession(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	printlnFn("Welcome to tubeaccounts (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) close() {
	if err := a.client.Close(); err != nil {
		log.Printf("close connection: %v", err)
	}
	if err := a.sessions.Close(); err != nil {
		log.Printf("close session store: %v", err)
	}
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.client.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// requestCtx bounds a single command by the configured request timeout.
func (a *App) requestCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}
