// Package rpc declares the kinveysync.AppData gRPC service shared by the
// client network manager and the backend. Every method takes and returns a
// google.protobuf.Struct, so no generated code is needed.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "kinveysync.AppData"

// Method names.
const (
	MethodGetByID       = "GetByID"
	MethodFind          = "Find"
	MethodCount         = "Count"
	MethodCreate        = "Create"
	MethodUpdate        = "Update"
	MethodDelete        = "Delete"
	MethodDeleteByQuery = "DeleteByQuery"
	MethodGroup         = "Group"
	MethodLogin         = "Login"
	MethodSignup        = "Signup"
	MethodPing          = "Ping"
)

// Request and response field names.
const (
	FieldCollection = "collection"
	FieldID         = "id"
	FieldEntity     = "entity"
	FieldFilter     = "query"
	FieldSort       = "sort"
	FieldSkip       = "skip"
	FieldLimit      = "limit"
	FieldItems      = "items"
	FieldCount      = "count"
	FieldAggregate  = "aggregation"
	FieldGroups     = "groups"
	FieldUsername   = "username"
	FieldPassword   = "password"
	FieldStatus     = "status"
)

// FullMethod returns the "/service/method" path of name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// AppDataServer is implemented by the backend.
type AppDataServer interface {
	GetByID(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Find(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Count(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Create(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteByQuery(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Group(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Signup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(AppDataServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AppDataServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AppDataServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AppDataServer)(nil),
	Methods: []grpc.MethodDesc{
		method(MethodGetByID, AppDataServer.GetByID),
		method(MethodFind, AppDataServer.Find),
		method(MethodCount, AppDataServer.Count),
		method(MethodCreate, AppDataServer.Create),
		method(MethodUpdate, AppDataServer.Update),
		method(MethodDelete, AppDataServer.Delete),
		method(MethodDeleteByQuery, AppDataServer.DeleteByQuery),
		method(MethodGroup, AppDataServer.Group),
		method(MethodLogin, AppDataServer.Login),
		method(MethodSignup, AppDataServer.Signup),
		method(MethodPing, AppDataServer.Ping),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kinveysync/appdata.proto",
}

func RegisterAppDataServer(s grpc.ServiceRegistrar, srv AppDataServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Invoke calls name on cc.
func Invoke(ctx context.Context, cc grpc.ClientConnInterface, name string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, FullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ToStruct converts any JSON-encodable value that encodes to an object.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode struct: %w", err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("failed to decode struct: %w", err)
	}
	return s, nil
}

// FromStruct decodes s into dst through JSON.
func FromStruct(s *structpb.Struct, dst any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode struct: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("failed to decode struct: %w", err)
	}
	return nil
}
