package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/rpc"
)

type ctxKey string

const (
	appKeyKey ctxKey = "appKey"
	userIDKey ctxKey = "userID"
)

// public methods need only a known app key.
var public = map[string]bool{
	rpc.FullMethod(rpc.MethodLogin):  true,
	rpc.FullMethod(rpc.MethodSignup): true,
	rpc.FullMethod(rpc.MethodPing):   true,
}

func firstValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	appKey := firstValue(md, common.AppKeyMetadataKey)
	if !s.users.KnownApp(appKey) {
		return nil, status.Error(codes.Unauthenticated, "unknown app key")
	}
	ctx = context.WithValue(ctx, appKeyKey, appKey)

	if public[info.FullMethod] {
		return handler(ctx, req)
	}

	accessToken := firstValue(md, common.AccessTokenMetadataKey)
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	user, err := s.users.Authenticate(ctx, appKey, accessToken)
	if err != nil {
		return nil, toStatus(err)
	}

	ctx = context.WithValue(ctx, userIDKey, user.ID)
	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	kv := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	if code == codes.Internal || code == codes.Unknown {
		s.logger.Error(ctx, "rpc failed", append(kv, "error", err)...)
	} else {
		s.logger.Debug(ctx, "rpc", kv...)
	}
	return resp, err
}

func appKeyFrom(ctx context.Context) string {
	v, _ := ctx.Value(appKeyKey).(string)
	return v
}

func userIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}
