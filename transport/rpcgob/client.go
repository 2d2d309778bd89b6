package rpcgob

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/orientcore/shardstore/opresult"
	"github.com/orientcore/shardstore/record"
	"github.com/orientcore/shardstore/ringid"
	"github.com/orientcore/shardstore/shardingerr"
)

// Client is a dht.Node backed by a grpc connection to a remote peer's
// rpcgob server, issuing the four record RPCs and FindSuccessor over
// the gob codec registered in codec.go.
type Client struct {
	id   ringid.NodeID
	addr string
	conn grpc.ClientConnInterface
}

// Dial opens a grpc connection to addr and wraps it as a Client
// identified by id.
func Dial(ctx context.Context, id ringid.NodeID, addr string) (*Client, error) {
	conn, err := grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, shardingerr.WithDetail(shardingerr.ErrRemoteRPC, err.Error())
	}
	return &Client{id: id, addr: addr, conn: conn}, nil
}

// NewClient wraps an already-established connection, for tests that
// dial through bufconn.
func NewClient(id ringid.NodeID, addr string, conn grpc.ClientConnInterface) *Client {
	return &Client{id: id, addr: addr, conn: conn}
}

func (c *Client) ID() ringid.NodeID { return c.id }
func (c *Client) Address() string   { return c.addr }
func (c *Client) IsLocal() bool     { return false }

func method(name string) string {
	return "/" + serviceName + "/" + name
}

// translateErr maps a grpc status error back onto this core's
// sentinel error kinds by matching its message against the kinds'
// own text, since the gob codec bypasses protobuf's structured status
// details.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	msg := status.Convert(err).Message()
	if strings.Contains(msg, shardingerr.ErrRecordDuplicated.Error()) {
		return shardingerr.WithDetail(shardingerr.ErrRecordDuplicated, msg)
	}
	return shardingerr.WithDetail(shardingerr.ErrRemoteRPC, msg)
}

func (c *Client) CreateRecord(ctx context.Context, rid record.RID, content []byte, version record.Version, typ record.RecordType) (opresult.Result[record.PhysicalPosition], error) {
	req := &CreateRequest{RID: rid, Content: content, Version: version, Type: typ}
	resp := new(CreateResponse)
	if err := c.conn.Invoke(ctx, method("CreateRecord"), req, resp); err != nil {
		return opresult.Result[record.PhysicalPosition]{}, translateErr(err)
	}
	return opresult.Remote(resp.PhysicalPosition), nil
}

func (c *Client) ReadRecord(ctx context.Context, rid record.RID) (opresult.Result[[]byte], error) {
	req := &ReadRequest{RID: rid}
	resp := new(ReadResponse)
	if err := c.conn.Invoke(ctx, method("ReadRecord"), req, resp); err != nil {
		return opresult.Result[[]byte]{}, translateErr(err)
	}
	return opresult.Remote(resp.Content), nil
}

func (c *Client) UpdateRecord(ctx context.Context, rid record.RID, content []byte, version record.Version, typ record.RecordType) (opresult.Result[record.Version], error) {
	req := &UpdateRequest{RID: rid, Content: content, Version: version, Type: typ}
	resp := new(UpdateResponse)
	if err := c.conn.Invoke(ctx, method("UpdateRecord"), req, resp); err != nil {
		return opresult.Result[record.Version]{}, translateErr(err)
	}
	return opresult.Remote(resp.Version), nil
}

func (c *Client) DeleteRecord(ctx context.Context, rid record.RID, version record.Version, forwarded bool) (opresult.Result[bool], error) {
	req := &DeleteRequest{RID: rid, Version: version, Forwarded: forwarded}
	resp := new(DeleteResponse)
	if err := c.conn.Invoke(ctx, method("DeleteRecord"), req, resp); err != nil {
		return opresult.Result[bool]{}, translateErr(err)
	}
	return opresult.Remote(resp.Existed), nil
}

func (c *Client) FindSuccessor(ctx context.Context, key ringid.NodeID) (ringid.NodeID, string, error) {
	req := &FindSuccessorRequest{Key: key}
	resp := new(FindSuccessorResponse)
	if err := c.conn.Invoke(ctx, method("FindSuccessor"), req, resp); err != nil {
		return ringid.NodeID{}, "", translateErr(err)
	}
	return resp.ID, resp.Address, nil
}
