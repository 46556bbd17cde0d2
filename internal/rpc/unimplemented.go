package rpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// UnimplementedAppDataServer answers every method with codes.Unimplemented.
// Embed it to implement a subset of the service.
type UnimplementedAppDataServer struct{}

func unimplemented(name string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", name)
}

func (UnimplementedAppDataServer) GetByID(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodGetByID)
}
func (UnimplementedAppDataServer) Find(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodFind)
}
func (UnimplementedAppDataServer) Count(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodCount)
}
func (UnimplementedAppDataServer) Create(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodCreate)
}
func (UnimplementedAppDataServer) Update(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodUpdate)
}
func (UnimplementedAppDataServer) Delete(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodDelete)
}
func (UnimplementedAppDataServer) DeleteByQuery(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodDeleteByQuery)
}
func (UnimplementedAppDataServer) Group(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodGroup)
}
func (UnimplementedAppDataServer) Login(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodLogin)
}
func (UnimplementedAppDataServer) Signup(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodSignup)
}
func (UnimplementedAppDataServer) Ping(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodPing)
}
