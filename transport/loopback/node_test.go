package loopback

import (
	"context"
	"testing"

	"github.com/orientcore/shardstore/lhpe"
	"github.com/orientcore/shardstore/record"
	"github.com/orientcore/shardstore/ringid"
)

type stubResolver struct {
	id   ringid.NodeID
	addr string
}

func (s *stubResolver) FindSuccessorRemote(ctx context.Context, key ringid.NodeID) (ringid.NodeID, string, error) {
	return s.id, s.addr, nil
}

func TestLoopbackNodeServicesRecordsLocally(t *testing.T) {
	storage := lhpe.NewStorage("")
	storage.Open()
	clusterID, err := storage.AddCluster("docs")
	if err != nil {
		t.Fatal(err)
	}

	resolver := &stubResolver{id: ringid.FromUint64(1), addr: "self"}
	n := New(ringid.FromUint64(1), "self", storage, resolver)

	if !n.IsLocal() {
		t.Fatal("loopback node must report IsLocal")
	}

	rid := record.RID{ClusterID: clusterID, ClusterPosition: 1}
	ctx := context.Background()
	if _, err := n.CreateRecord(ctx, rid, []byte("hi"), 0, record.RecordTypeDocument); err != nil {
		t.Fatal(err)
	}
	got, err := n.ReadRecord(ctx, rid)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Value) != "hi" {
		t.Fatalf("read = %q, want %q", got.Value, "hi")
	}

	id, addr, err := n.FindSuccessor(ctx, ringid.FromUint64(5))
	if err != nil {
		t.Fatal(err)
	}
	if addr != "self" || id.Cmp(resolver.id) != 0 {
		t.Fatalf("FindSuccessor = %s/%s, want self", id.Hex(), addr)
	}
}
