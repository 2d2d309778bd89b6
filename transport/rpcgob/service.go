package rpcgob

import (
	"context"

	"google.golang.org/grpc"

	"github.com/orientcore/shardstore/dht"
)

// serviceName and method paths form this service's wire contract in
// place of a .proto-generated one.
const serviceName = "shardstore.ShardNode"

// Server answers the four record RPCs plus FindSuccessor by delegating
// to a local dht.Node: cmd/shardnode passes a node backed by this
// peer's autosharded storage, and the tests pass a
// transport/loopback.Node wrapping an lhpe.Storage.
type Server struct {
	Local dht.Node
}

func (s *Server) createRecord(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	res, err := s.Local.CreateRecord(ctx, req.RID, req.Content, req.Version, req.Type)
	if err != nil {
		return nil, err
	}
	return &CreateResponse{PhysicalPosition: res.Value, FromRemote: res.FromRemote}, nil
}

func (s *Server) readRecord(ctx context.Context, req *ReadRequest) (*ReadResponse, error) {
	res, err := s.Local.ReadRecord(ctx, req.RID)
	if err != nil {
		return nil, err
	}
	return &ReadResponse{Content: res.Value, FromRemote: res.FromRemote}, nil
}

func (s *Server) updateRecord(ctx context.Context, req *UpdateRequest) (*UpdateResponse, error) {
	res, err := s.Local.UpdateRecord(ctx, req.RID, req.Content, req.Version, req.Type)
	if err != nil {
		return nil, err
	}
	return &UpdateResponse{Version: res.Value, FromRemote: res.FromRemote}, nil
}

func (s *Server) deleteRecord(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	res, err := s.Local.DeleteRecord(ctx, req.RID, req.Version, req.Forwarded)
	if err != nil {
		return nil, err
	}
	return &DeleteResponse{Existed: res.Value, FromRemote: res.FromRemote}, nil
}

func (s *Server) findSuccessor(ctx context.Context, req *FindSuccessorRequest) (*FindSuccessorResponse, error) {
	id, addr, err := s.Local.FindSuccessor(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	return &FindSuccessorResponse{ID: id, Address: addr}, nil
}

func unaryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor, newReq func() interface{}, call func(context.Context, interface{}) (interface{}, error)) (interface{}, error) {
	req := newReq()
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return call(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return call(ctx, req)
	}
	return interceptor(ctx, req, info, handler)
}

// ServiceDesc is registered with a *grpc.Server via RegisterService,
// standing in for a protoc-generated _ServiceDesc.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateRecord",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return unaryHandler(srv, ctx, dec, interceptor, func() interface{} { return new(CreateRequest) }, func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(*Server).createRecord(ctx, req.(*CreateRequest))
				})
			},
		},
		{
			MethodName: "ReadRecord",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return unaryHandler(srv, ctx, dec, interceptor, func() interface{} { return new(ReadRequest) }, func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(*Server).readRecord(ctx, req.(*ReadRequest))
				})
			},
		},
		{
			MethodName: "UpdateRecord",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return unaryHandler(srv, ctx, dec, interceptor, func() interface{} { return new(UpdateRequest) }, func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(*Server).updateRecord(ctx, req.(*UpdateRequest))
				})
			},
		},
		{
			MethodName: "DeleteRecord",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return unaryHandler(srv, ctx, dec, interceptor, func() interface{} { return new(DeleteRequest) }, func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(*Server).deleteRecord(ctx, req.(*DeleteRequest))
				})
			},
		},
		{
			MethodName: "FindSuccessor",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return unaryHandler(srv, ctx, dec, interceptor, func() interface{} { return new(FindSuccessorRequest) }, func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(*Server).findSuccessor(ctx, req.(*FindSuccessorRequest))
				})
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shardstore/rpcgob.proto",
}
