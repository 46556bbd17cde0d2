package grpc

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/query"
	"github.com/dmitrijs2005/kinveysync/internal/rpc"
	"github.com/dmitrijs2005/kinveysync/internal/server/models"
)

func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, common.ErrorValidation), errors.Is(err, query.ErrInvalidQuery):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrInvalidLoginPassword),
		errors.Is(err, common.ErrInvalidAppCredentials),
		errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func intField(req *structpb.Struct, name string) int {
	return int(req.GetFields()[name].GetNumberValue())
}

func collectionOf(req *structpb.Struct) (string, error) {
	c := stringField(req, rpc.FieldCollection)
	if c == "" {
		return "", status.Error(codes.InvalidArgument, "collection is required")
	}
	return c, nil
}

func queryOf(req *structpb.Struct) (*query.Query, error) {
	q, err := query.Parse(
		stringField(req, rpc.FieldFilter),
		stringField(req, rpc.FieldSort),
		intField(req, rpc.FieldSkip),
		intField(req, rpc.FieldLimit),
	)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return q, nil
}

func entityOf(req *structpb.Struct) models.Document {
	e := req.GetFields()[rpc.FieldEntity].GetStructValue()
	if e == nil {
		return models.Document{}
	}
	return models.Document(e.AsMap())
}

func reply(v any) (*structpb.Struct, error) {
	out, err := rpc.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func countReply(n int) (*structpb.Struct, error) {
	return reply(map[string]any{rpc.FieldCount: n})
}

func (s *GRPCServer) GetByID(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	collection, err := collectionOf(req)
	if err != nil {
		return nil, err
	}
	doc, err := s.appdata.Get(ctx, appKeyFrom(ctx), collection, stringField(req, rpc.FieldID))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(doc)
}

func (s *GRPCServer) Find(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	collection, err := collectionOf(req)
	if err != nil {
		return nil, err
	}
	q, err := queryOf(req)
	if err != nil {
		return nil, err
	}
	docs, err := s.appdata.Find(ctx, appKeyFrom(ctx), collection, q)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{rpc.FieldItems: docs})
}

func (s *GRPCServer) Count(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	collection, err := collectionOf(req)
	if err != nil {
		return nil, err
	}
	q, err := queryOf(req)
	if err != nil {
		return nil, err
	}
	n, err := s.appdata.Count(ctx, appKeyFrom(ctx), collection, q)
	if err != nil {
		return nil, toStatus(err)
	}
	return countReply(n)
}

func (s *GRPCServer) Group(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	collection, err := collectionOf(req)
	if err != nil {
		return nil, err
	}
	agg := req.GetFields()[rpc.FieldAggregate].GetStructValue()
	if agg == nil {
		return nil, status.Error(codes.InvalidArgument, "aggregation is required")
	}
	body, err := json.Marshal(agg.AsMap())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	a, condition, err := query.DecodeAggregation(body)
	if err != nil {
		return nil, toStatus(err)
	}
	groups, err := s.appdata.Group(ctx, appKeyFrom(ctx), collection, a, condition)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{rpc.FieldGroups: groups})
}

func (s *GRPCServer) Create(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	collection, err := collectionOf(req)
	if err != nil {
		return nil, err
	}
	doc, err := s.appdata.Create(ctx, appKeyFrom(ctx), userIDFrom(ctx), collection, entityOf(req))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(doc)
}

func (s *GRPCServer) Update(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	collection, err := collectionOf(req)
	if err != nil {
		return nil, err
	}
	e := entityOf(req)
	id := e.ID()
	if id == "" {
		id = stringField(req, rpc.FieldID)
	}
	doc, err := s.appdata.Update(ctx, appKeyFrom(ctx), userIDFrom(ctx), collection, id, e)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(doc)
}

func (s *GRPCServer) Delete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	collection, err := collectionOf(req)
	if err != nil {
		return nil, err
	}
	n, err := s.appdata.Delete(ctx, appKeyFrom(ctx), collection, stringField(req, rpc.FieldID))
	if err != nil {
		return nil, toStatus(err)
	}
	return countReply(n)
}

func (s *GRPCServer) DeleteByQuery(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	collection, err := collectionOf(req)
	if err != nil {
		return nil, err
	}
	q, err := queryOf(req)
	if err != nil {
		return nil, err
	}
	n, err := s.appdata.DeleteByQuery(ctx, appKeyFrom(ctx), collection, q.Unpaginated())
	if err != nil {
		return nil, toStatus(err)
	}
	return countReply(n)
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.users.Login(ctx, appKeyFrom(ctx), stringField(req, rpc.FieldUsername), stringField(req, rpc.FieldPassword))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(user)
}

func (s *GRPCServer) Signup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username := stringField(req, rpc.FieldUsername)
	user, err := s.users.Signup(ctx, appKeyFrom(ctx), username, stringField(req, rpc.FieldPassword))
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info(ctx, "Registered", "username", username)
	return reply(user)
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return reply(map[string]any{rpc.FieldStatus: "OK"})
}
