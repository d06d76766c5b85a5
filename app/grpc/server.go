package grpc

import (
	"context"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	TokenServiceName          = "nengtul.auth.v1.TokenService"
	ValidateAccessTokenMethod = "/" + TokenServiceName + "/ValidateAccessToken"
)

// TokenServiceServer lets sibling services check a user's access token.
// Messages are well-known protobuf types so no generated code is needed.
type TokenServiceServer interface {
	ValidateAccessToken(ctx context.Context, raw *wrapperspb.StringValue) (*structpb.Struct, error)
}

var TokenServiceDesc = gogrpc.ServiceDesc{
	ServiceName: TokenServiceName,
	HandlerType: (*TokenServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "ValidateAccessToken", Handler: validateAccessTokenHandler},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "nengtul/auth/v1/token.proto",
}

func validateAccessTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).ValidateAccessToken(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: ValidateAccessTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).ValidateAccessToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ValidateAccessToken is the client side of TokenService.
func ValidateAccessToken(ctx context.Context, cc gogrpc.ClientConnInterface, raw string, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, ValidateAccessTokenMethod, wrapperspb.String(raw), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type tokenValidator interface {
	Subject(accessToken string) (string, bool)
	IsBlacklisted(ctx context.Context, email, accessToken string) (bool, error)
}

type TokenServer struct {
	sessions tokenValidator
}

func NewTokenServer(sessions tokenValidator) *TokenServer {
	return &TokenServer{sessions: sessions}
}

func (s *TokenServer) ValidateAccessToken(ctx context.Context, raw *wrapperspb.StringValue) (*structpb.Struct, error) {
	caller, _ := CallerService(ctx)

	email, ok := s.sessions.Subject(raw.GetValue())
	if !ok {
		logrus.WithField("caller", caller).Debug("Invalid access token presented (grpc)")
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	blacklisted, err := s.sessions.IsBlacklisted(ctx, email, raw.GetValue())
	if err != nil {
		logrus.WithError(err).WithField("email", email).Error("Blacklist lookup failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	if blacklisted {
		logrus.WithFields(logrus.Fields{"caller": caller, "email": email}).Debug("Blacklisted access token presented (grpc)")
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	resp, err := structpb.NewStruct(map[string]any{"email": email, "valid": true})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return resp, nil
}

// NewServer builds a gRPC server with the token service and the standard
// health service. Every call except health checks needs a configured API key.
func NewServer(tokens TokenServiceServer, keys *APIKeyring, opts ...gogrpc.ServerOption) *gogrpc.Server {
	opts = append(opts,
		gogrpc.ChainUnaryInterceptor(APIKeyUnaryInterceptor(keys)),
		gogrpc.ChainStreamInterceptor(APIKeyStreamInterceptor(keys)),
	)
	server := gogrpc.NewServer(opts...)
	server.RegisterService(&TokenServiceDesc, tokens)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(TokenServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	return server
}
