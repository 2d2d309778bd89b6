package main

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/orientcore/shardstore/autosharded"
	"github.com/orientcore/shardstore/dht"
	"github.com/orientcore/shardstore/opresult"
	"github.com/orientcore/shardstore/record"
	"github.com/orientcore/shardstore/ringid"
)

// routerNode adapts autosharded.Storage (whose Create/Read/Update/
// Delete already apply routing) onto the dht.Node interface, so this
// peer's own grpc server answers RPCs the same way a client would,
// with the routing decision made exactly once per request.
type routerNode struct {
	id      ringid.NodeID
	address string
	router  *autosharded.Storage
	server  *dht.ServerInstance
}

func (n *routerNode) ID() ringid.NodeID { return n.id }
func (n *routerNode) Address() string   { return n.address }
func (n *routerNode) IsLocal() bool     { return true }

func (n *routerNode) CreateRecord(ctx context.Context, rid record.RID, content []byte, version record.Version, typ record.RecordType) (opresult.Result[record.PhysicalPosition], error) {
	res, _, err := n.router.CreateRecord(ctx, rid, content, version, typ, nil)
	return res, err
}

func (n *routerNode) ReadRecord(ctx context.Context, rid record.RID) (opresult.Result[[]byte], error) {
	return n.router.ReadRecord(ctx, rid, nil)
}

func (n *routerNode) UpdateRecord(ctx context.Context, rid record.RID, content []byte, version record.Version, typ record.RecordType) (opresult.Result[record.Version], error) {
	return n.router.UpdateRecord(ctx, rid, content, version, typ, nil)
}

func (n *routerNode) DeleteRecord(ctx context.Context, rid record.RID, version record.Version, forwarded bool) (opresult.Result[bool], error) {
	return n.router.DeleteRecord(ctx, rid, version, forwarded, nil)
}

func (n *routerNode) FindSuccessor(ctx context.Context, key ringid.NodeID) (ringid.NodeID, string, error) {
	return n.server.FindSuccessorRemote(ctx, key)
}

// serve listens on address and blocks serving grpcServer.
func serve(grpcServer *grpc.Server, address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return grpcServer.Serve(lis)
}
