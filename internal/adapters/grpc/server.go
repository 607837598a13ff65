package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/directory"
)

const serviceName = "viralforge.userdirectory.v1.UserDirectoryService"

// UserDirectoryService is the internal gRPC surface. Callers are trusted mesh
// services and pass the requester id in the request. Directory outcomes travel
// in the "status" field; gRPC errors are reserved for malformed requests.
type UserDirectoryService interface {
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUserByUsername(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUserByID(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateField(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GrantVisibility(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokeVisibility(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type UserDirectoryServer struct {
	api *directory.API
}

func NewUserDirectoryServer(api *directory.API) *UserDirectoryServer {
	return &UserDirectoryServer{api: api}
}

func Register(server grpc.ServiceRegistrar, svc UserDirectoryService) {
	methods := []struct {
		name string
		call func(context.Context, *structpb.Struct) (*structpb.Struct, error)
	}{
		{"GetUser", svc.GetUser},
		{"GetUserByUsername", svc.GetUserByUsername},
		{"GetUserByID", svc.GetUserByID},
		{"CreateUser", svc.CreateUser},
		{"UpdateField", svc.UpdateField},
		{"GrantVisibility", svc.GrantVisibility},
		{"RevokeVisibility", svc.RevokeVisibility},
		{"DeleteUser", svc.DeleteUser},
	}
	desc := &grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*UserDirectoryService)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "mesh/contracts/proto/userdirectory/v1/user_directory.proto",
	}
	for _, m := range methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    unaryHandler(m.name, m.call),
		})
	}
	server.RegisterService(desc, svc)
}

func (s *UserDirectoryServer) GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	requesterID, err := uuidField(req, "requester_id")
	if err != nil {
		return nil, err
	}
	return toStruct(s.api.GetUser(ctx, stringField(req, "phone"), requesterID))
}

func (s *UserDirectoryServer) GetUserByUsername(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	requesterID, err := uuidField(req, "requester_id")
	if err != nil {
		return nil, err
	}
	return toStruct(s.api.GetUserByUsername(ctx, stringField(req, "username"), requesterID))
}

func (s *UserDirectoryServer) GetUserByID(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := uuidField(req, "user_id")
	if err != nil {
		return nil, err
	}
	requesterID, err := uuidField(req, "requester_id")
	if err != nil {
		return nil, err
	}
	return toStruct(s.api.GetUserByID(ctx, userID, requesterID))
}

func (s *UserDirectoryServer) CreateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	requester := application.RequesterContext{Source: "grpc", RequestID: stringField(req, "request_id")}
	if raw := stringField(req, "requester_id"); raw != "" {
		id, err := uuidField(req, "requester_id")
		if err != nil {
			return nil, err
		}
		requester.RequesterID = id
	}
	return toStruct(s.api.CreateUser(ctx, directory.CreateUserRequest{
		Phone:    stringField(req, "phone"),
		Username: stringField(req, "username"),
		Name:     stringField(req, "name"),
	}, requester))
}

func (s *UserDirectoryServer) UpdateField(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, requesterID, err := ownerAndRequester(req)
	if err != nil {
		return nil, err
	}
	return toStruct(s.api.UpdateField(ctx, directory.UpdateFieldRequest{
		OwnerID:     ownerID,
		RequesterID: requesterID,
		Field:       stringField(req, "field"),
		Value:       stringField(req, "value"),
	}))
}

func (s *UserDirectoryServer) GrantVisibility(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	vr, err := visibilityRequest(req)
	if err != nil {
		return nil, err
	}
	return toStruct(s.api.GrantVisibility(ctx, vr))
}

func (s *UserDirectoryServer) RevokeVisibility(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	vr, err := visibilityRequest(req)
	if err != nil {
		return nil, err
	}
	return toStruct(s.api.RevokeVisibility(ctx, vr))
}

func (s *UserDirectoryServer) DeleteUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, requesterID, err := ownerAndRequester(req)
	if err != nil {
		return nil, err
	}
	return toStruct(s.api.DeleteUser(ctx, ownerID, requesterID))
}

func visibilityRequest(req *structpb.Struct) (directory.VisibilityRequest, error) {
	ownerID, requesterID, err := ownerAndRequester(req)
	if err != nil {
		return directory.VisibilityRequest{}, err
	}
	viewerID, err := uuidField(req, "viewer_id")
	if err != nil {
		return directory.VisibilityRequest{}, err
	}
	return directory.VisibilityRequest{
		OwnerID:     ownerID,
		RequesterID: requesterID,
		FieldKind:   stringField(req, "field_kind"),
		ViewerID:    viewerID,
	}, nil
}

func ownerAndRequester(req *structpb.Struct) (uuid.UUID, uuid.UUID, error) {
	ownerID, err := uuidField(req, "user_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	requesterID, err := uuidField(req, "requester_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return ownerID, requesterID, nil
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func uuidField(req *structpb.Struct, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(stringField(req, name))
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s", name)
	}
	return id, nil
}

// toStruct converts a directory response through its JSON form so the wire
// shape matches the HTTP transport, omitted fields included.
func toStruct(resp any) (*structpb.Struct, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return out, nil
}

func unaryHandler(method string, call func(context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := fmt.Sprintf("/%s/%s", serviceName, method)
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

// LoggingInterceptor logs one line per unary call.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "grpc", "layer", "adapter")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []any{
			"operation", "grpc_request",
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logger.WarnContext(ctx, "grpc request completed", append(fields, "outcome", "failure", "error", err)...)
			return resp, err
		}
		logger.InfoContext(ctx, "grpc request completed", append(fields, "outcome", "success")...)
		return resp, nil
	}
}
