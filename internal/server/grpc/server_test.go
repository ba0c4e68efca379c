package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/api"
	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", nopLogger{}, &fakeAccounts{}, 1<<20)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", nopLogger{}, &fakeAccounts{}, 1<<20)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

func TestMaxRecvMsgSize_FitsTwoEncodedImages(t *testing.T) {
	srv := NewGRPCServer("", nopLogger{}, &fakeAccounts{}, 3<<20)
	assert.Equal(t, 8<<20+messageOverhead, srv.maxRecvMsgSize())
}

// dialBufconn serves srv over an in-memory listener and returns a client.
func dialBufconn(t *testing.T, srv *GRPCServer) *api.AccountServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})

	return api.NewAccountServiceClient(conn)
}

func TestServe_EndToEnd(t *testing.T) {
	accounts := &fakeAccounts{
		loginUser: &models.User{ID: "u1", Username: "ada", PasswordHash: "h", RefreshToken: "r"},
		loginPair: &sessions.TokenPair{AccessToken: "a1", RefreshToken: "r1"},
		meUser:    &models.User{ID: "u1", Username: "ada", Email: "ada@x.io"},
		tokens:    map[string]string{"a1": "u1"},
	}
	client := dialBufconn(t, NewGRPCServer("", nopLogger{}, accounts, 1<<20))
	ctx := context.Background()

	ping, err := client.Ping(ctx, &api.PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "OK", ping.Status)

	login, err := client.Login(ctx, &api.LoginRequest{Username: "ada", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "a1", login.Tokens.AccessToken)
	assert.Equal(t, "u1", login.User.ID)
	assert.Equal(t, "ada", accounts.gotCredentials.Username)

	_, err = client.Me(ctx, &api.MeRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	authed := metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, "a1")
	me, err := client.Me(authed, &api.MeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ada@x.io", me.User.Email)

	_, err = client.Logout(authed, &api.LogoutRequest{})
	require.NoError(t, err)
	assert.Equal(t, "u1", accounts.loggedOut)
}

func TestServe_ExpiredTokenMessage(t *testing.T) {
	client := dialBufconn(t, NewGRPCServer("", nopLogger{}, &fakeAccounts{}, 1<<20))

	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, "expired")
	_, err := client.Me(ctx, &api.MeRequest{})

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Unauthenticated, st.Code())
	assert.Equal(t, "token expired", st.Message())
}
