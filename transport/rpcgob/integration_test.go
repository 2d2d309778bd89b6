package rpcgob

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/orientcore/shardstore/lhpe"
	"github.com/orientcore/shardstore/record"
	"github.com/orientcore/shardstore/ringid"
	"github.com/orientcore/shardstore/shardingerr"
	"github.com/orientcore/shardstore/transport/loopback"
)

const bufSize = 1 << 20

func dialBufconn(t *testing.T, lis *bufconn.Listener) *grpc.ClientConn {
	t.Helper()
	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClientServerRoundTripOverGob(t *testing.T) {
	storage := lhpe.NewStorage("")
	storage.Open()
	clusterID, err := storage.AddCluster("docs")
	if err != nil {
		t.Fatal(err)
	}

	localID := ringid.FromUint64(1)
	localNode := loopback.New(localID, "bufnet", storage, nil)

	srv := grpc.NewServer()
	grpcServer := &Server{Local: localNode}
	srv.RegisterService(&ServiceDesc, grpcServer)

	lis := bufconn.Listen(bufSize)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn := dialBufconn(t, lis)
	client := NewClient(localID, "bufnet", conn)

	rid := record.RID{ClusterID: clusterID, ClusterPosition: 7}
	ctx := context.Background()
	if _, err := client.CreateRecord(ctx, rid, []byte("over-the-wire"), 0, record.RecordTypeDocument); err != nil {
		t.Fatal(err)
	}
	got, err := client.ReadRecord(ctx, rid)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Value) != "over-the-wire" {
		t.Fatalf("read = %q, want %q", got.Value, "over-the-wire")
	}
	if !got.FromRemote {
		t.Fatal("client-side read did not report FromRemote")
	}

	delRes, err := client.DeleteRecord(ctx, rid, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if !delRes.Value {
		t.Fatal("delete reported record did not exist")
	}
}

func TestCreateDuplicateTranslatesToSentinelKind(t *testing.T) {
	storage := lhpe.NewStorage("")
	storage.Open()
	clusterID, err := storage.AddCluster("docs")
	if err != nil {
		t.Fatal(err)
	}
	localID := ringid.FromUint64(1)
	localNode := loopback.New(localID, "bufnet", storage, nil)

	srv := grpc.NewServer()
	srv.RegisterService(&ServiceDesc, &Server{Local: localNode})
	lis := bufconn.Listen(bufSize)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn := dialBufconn(t, lis)
	client := NewClient(localID, "bufnet", conn)

	rid := record.RID{ClusterID: clusterID, ClusterPosition: 99}
	ctx := context.Background()
	if _, err := client.CreateRecord(ctx, rid, []byte("a"), 0, record.RecordTypeDocument); err != nil {
		t.Fatal(err)
	}
	_, err = client.CreateRecord(ctx, rid, []byte("b"), 0, record.RecordTypeDocument)
	if err == nil {
		t.Fatal("expected duplicate create to fail")
	}
	if !shardingerr.IsDuplicated(err) {
		t.Fatalf("error = %v, want a duplicate-kind error", err)
	}
}
