package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/tubeaccounts/internal/api"
	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/services"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/sessions"
	"google.golang.org/grpc"
)

// accountService is the part of services.UserService the handlers use.
type accountService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, c sessions.Credentials) (*models.User, *sessions.TokenPair, error)
	Logout(ctx context.Context, identityID string) error
	Refresh(ctx context.Context, refreshToken string) (*sessions.TokenPair, error)
	Me(ctx context.Context, identityID string) (*models.User, error)
	Authorize(accessToken string) (string, error)
}

// messageOverhead leaves room for the non-image fields of a register
// request on top of two full-size images, base64-encoded.
const messageOverhead = 64 << 10

type GRPCServer struct {
	address       string
	users         accountService
	logger        logging.Logger
	maxImageBytes int64
}

func NewGRPCServer(a string, l logging.Logger, us accountService, maxImageBytes int64) *GRPCServer {
	return &GRPCServer{
		address:       a,
		logger:        l.With("module", "grpc_server"),
		users:         us,
		maxImageBytes: maxImageBytes,
	}
}

func (s *GRPCServer) maxRecvMsgSize() int {
	// two images, base64 grows them by 4/3
	return int(s.maxImageBytes*2*4/3) + messageOverhead
}

func (s *GRPCServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
		grpc.MaxRecvMsgSize(s.maxRecvMsgSize()),
	)

	api.RegisterAccountServiceServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
