package lhpe

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/orientcore/shardstore/opresult"
	"github.com/orientcore/shardstore/record"
)

func TestCreateReadUpdateDeleteRoundTrip(t *testing.T) {
	c := NewCluster(1, "documents")
	rid := record.RID{ClusterID: 1, ClusterPosition: 42}

	res, err := c.CreateRecord(rid, []byte("hello"), 0, record.RecordTypeDocument, ModeSync, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromRemote {
		t.Fatal("local cluster create reported FromRemote")
	}

	got, err := c.ReadRecord(rid, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Value) != "hello" {
		t.Fatalf("read = %q, want %q", got.Value, "hello")
	}

	if _, err := c.UpdateRecord(rid, []byte("world"), 1, record.RecordTypeDocument, ModeSync, nil); err != nil {
		t.Fatal(err)
	}
	got, err = c.ReadRecord(rid, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Value) != "world" {
		t.Fatalf("read after update = %q, want %q", got.Value, "world")
	}

	delRes, err := c.DeleteRecord(rid, 1, ModeSync, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !delRes.Value {
		t.Fatal("delete reported record did not exist")
	}
	if _, err := c.ReadRecord(rid, nil); err == nil {
		t.Fatal("expected read after delete to fail")
	}
}

func TestCreateDuplicateClusterPositionRejected(t *testing.T) {
	c := NewCluster(1, "documents")
	rid := record.RID{ClusterID: 1, ClusterPosition: 7}
	if _, err := c.CreateRecord(rid, []byte("a"), 0, record.RecordTypeDocument, ModeSync, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateRecord(rid, []byte("b"), 0, record.RecordTypeDocument, ModeSync, nil); err == nil {
		t.Fatal("expected duplicate cluster position to be rejected")
	}
}

func TestManyRecordsSurviveOverflowAndSplit(t *testing.T) {
	c := NewCluster(1, "documents")
	const n = 5000
	for i := 0; i < n; i++ {
		rid := record.RID{ClusterID: 1, ClusterPosition: record.ClusterPosition(i)}
		if _, err := c.CreateRecord(rid, []byte(fmt.Sprintf("v%d", i)), 0, record.RecordTypeDocument, ModeSync, nil); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if got := c.Count(); got != n {
		t.Fatalf("count = %d, want %d", got, n)
	}
	for i := 0; i < n; i += 137 {
		rid := record.RID{ClusterID: 1, ClusterPosition: record.ClusterPosition(i)}
		got, err := c.ReadRecord(rid, nil)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		want := fmt.Sprintf("v%d", i)
		if string(got.Value) != want {
			t.Fatalf("read %d = %q, want %q", i, got.Value, want)
		}
	}
}

func TestCreateInvokesCallbackOnLocalOperation(t *testing.T) {
	c := NewCluster(1, "documents")
	rid := record.RID{ClusterID: 1, ClusterPosition: 99}

	var calls int
	var gotErr error
	_, err := c.CreateRecord(rid, []byte("x"), 0, record.RecordTypeDocument, ModeSync, func(res opresult.Result[record.PhysicalPosition], cbErr error) {
		calls++
		gotErr = cbErr
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("callback invoked %d times, want 1", calls)
	}
	if gotErr != nil {
		t.Fatalf("callback received error %v, want nil", gotErr)
	}
}

func TestStorageClusterAdmin(t *testing.T) {
	s := NewStorage("")
	s.Open()
	id, err := s.AddCluster("internal")
	if err != nil {
		t.Fatal(err)
	}
	if name, ok := s.ClusterNameByID(id); !ok || name != "internal" {
		t.Fatalf("ClusterNameByID = %q, %v", name, ok)
	}
	if gotID, ok := s.ClusterIDByName("internal"); !ok || gotID != id {
		t.Fatalf("ClusterIDByName = %d, %v", gotID, ok)
	}
	if _, err := s.AddCluster("internal"); err == nil {
		t.Fatal("expected duplicate cluster name to be rejected")
	}
	if err := s.DropCluster(id); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Cluster(id); ok {
		t.Fatal("cluster still present after drop")
	}
}

func TestStoragePersistsAcrossCloseAndReopen(t *testing.T) {
	dir := t.TempDir()
	s := NewStorage(dir)
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}
	id, err := s.AddCluster("documents")
	if err != nil {
		t.Fatal(err)
	}
	rid := record.RID{ClusterID: id, ClusterPosition: 123}
	if _, err := s.CreateRecord(rid, []byte("durable"), 0, record.RecordTypeDocument, ModeSync, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := NewStorage(dir)
	if err := reopened.Open(); err != nil {
		t.Fatal(err)
	}
	gotID, ok := reopened.ClusterIDByName("documents")
	if !ok || gotID != id {
		t.Fatalf("cluster not recovered from manifest: id=%d ok=%v", gotID, ok)
	}
	res, err := reopened.ReadRecord(record.RID{ClusterID: gotID, ClusterPosition: 123}, nil)
	if err != nil {
		t.Fatalf("reading record after reopen: %v", err)
	}
	if string(res.Value) != "durable" {
		t.Fatalf("read after reopen = %q, want %q", res.Value, "durable")
	}
}

func TestClusterJournalFileCreatedUnderDataDir(t *testing.T) {
	dir := t.TempDir()
	s := NewStorage(dir)
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddCluster("documents"); err != nil {
		t.Fatal(err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "documents.lhpe"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("journal file glob matched %v, want exactly documents.lhpe", matches)
	}
}
