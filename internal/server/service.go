package server

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "backend_api.BackendApiService"

	MethodGetJob       = "/" + ServiceName + "/GetJob"
	MethodAddJob       = "/" + ServiceName + "/AddJob"
	MethodUpdateJob    = "/" + ServiceName + "/UpdateJob"
	MethodDeleteJob    = "/" + ServiceName + "/DeleteJob"
	MethodNextSequence = "/" + ServiceName + "/NextSequence"
)

// BackendAPIServer is the server side of the backend API.
type BackendAPIServer interface {
	GetJob(context.Context, *GetJobRequest) (*GetJobResponse, error)
	AddJob(context.Context, *AddJobRequest) (*AddJobResponse, error)
	UpdateJob(context.Context, *UpdateJobRequest) (*UpdateJobResponse, error)
	DeleteJob(context.Context, *DeleteJobRequest) (*DeleteJobResponse, error)
	NextSequence(context.Context, *NextSequenceRequest) (*NextSequenceResponse, error)
}

// RegisterBackendAPIServer registers srv on s.
func RegisterBackendAPIServer(s grpc.ServiceRegistrar, srv BackendAPIServer) {
	s.RegisterService(&backendAPIServiceDesc, srv)
}

// unaryHandler adapts a typed method to grpc's method handler shape.
func unaryHandler[Req any, Resp any](method string, call func(BackendAPIServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BackendAPIServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BackendAPIServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var backendAPIServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BackendAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetJob", Handler: unaryHandler(MethodGetJob, BackendAPIServer.GetJob)},
		{MethodName: "AddJob", Handler: unaryHandler(MethodAddJob, BackendAPIServer.AddJob)},
		{MethodName: "UpdateJob", Handler: unaryHandler(MethodUpdateJob, BackendAPIServer.UpdateJob)},
		{MethodName: "DeleteJob", Handler: unaryHandler(MethodDeleteJob, BackendAPIServer.DeleteJob)},
		{MethodName: "NextSequence", Handler: unaryHandler(MethodNextSequence, BackendAPIServer.NextSequence)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "backend_api.proto",
}
