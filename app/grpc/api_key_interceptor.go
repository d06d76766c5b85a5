package grpc

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

type callerServiceKey struct{}

// CallerService returns the name of the service whose API key admitted the call.
func CallerService(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(callerServiceKey{}).(string)
	return name, ok
}

// APIKeyring holds digests of the configured per-service keys.
type APIKeyring struct {
	digests map[string][sha256.Size]byte
}

func NewAPIKeyring(keys map[string]string) *APIKeyring {
	digests := make(map[string][sha256.Size]byte, len(keys))
	for name, key := range keys {
		digests[name] = sha256.Sum256([]byte(key))
	}
	return &APIKeyring{digests: digests}
}

// Lookup returns the service owning apiKey. Every digest is compared.
func (k *APIKeyring) Lookup(apiKey string) (string, bool) {
	presented := sha256.Sum256([]byte(apiKey))
	var found string
	for name, digest := range k.digests {
		if subtle.ConstantTimeCompare(presented[:], digest[:]) == 1 {
			found = name
		}
	}
	return found, found != ""
}

func APIKeyUnaryInterceptor(keys *APIKeyring) gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}

		caller, err := validateIncomingAPIKey(ctx, keys)
		if err != nil {
			return nil, err
		}
		return handler(context.WithValue(ctx, callerServiceKey{}, caller), req)
	}
}

func APIKeyStreamInterceptor(keys *APIKeyring) gogrpc.StreamServerInterceptor {
	return func(srv any, ss gogrpc.ServerStream, info *gogrpc.StreamServerInfo, handler gogrpc.StreamHandler) error {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(srv, ss)
		}

		caller, err := validateIncomingAPIKey(ss.Context(), keys)
		if err != nil {
			return err
		}
		ctx := context.WithValue(ss.Context(), callerServiceKey{}, caller)
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

func validateIncomingAPIKey(ctx context.Context, keys *APIKeyring) (string, error) {
	apiKey := incomingAPIKeyFromMetadata(ctx)
	if apiKey == "" {
		return "", status.Error(codes.Unauthenticated, "unauthorized")
	}

	caller, ok := keys.Lookup(apiKey)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "unauthorized")
	}
	return caller, nil
}

func incomingAPIKeyFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("x-api-key")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

type wrappedServerStream struct {
	gogrpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
