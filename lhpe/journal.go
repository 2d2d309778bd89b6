package lhpe

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"os"
	"sync"
)

// journalRecordKind tags each record appended to a cluster's on-disk
// journal, grounded on triedb/pathdb/journal.go's versioned-record
// replay pattern: a cluster's state is reconstructed by reading every
// record from the start of the file, in the order they were written.
type journalRecordKind uint8

const (
	journalSegment journalRecordKind = iota + 1
	journalBucket
	journalMeta
)

// journalSegmentRecord mirrors one append to the content log.
type journalSegmentRecord struct {
	Content []byte
}

// journalBucketRecord is a full snapshot of one bucket's backing
// buffer, appended whenever FlushDirty drains it. Replaying the last
// record for a given Index reconstructs that bucket's final state.
type journalBucketRecord struct {
	Index      int64
	Buf        []byte
	IsOverflow bool
}

// journalMetaRecord captures the linear-hashing directory's bookkeeping
// fields, appended on Close so the next Open can resume splitting from
// the same point.
type journalMetaRecord struct {
	Level     uint
	Next      int
	MainIndex []int64
}

// journal is one cluster's append-only on-disk log (spec.md §4.3's
// "persists its bucket directory ... as a small append-only journal on
// close/open"). Every mutation is appended, never rewritten in place;
// recovery replays the file from the beginning.
type journal struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func openJournalForAppend(path string) (*journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &journal{path: path, f: f}, nil
}

// appendRecord gob-encodes v and writes it as one length-prefixed
// record: a 1-byte kind tag, an 8-byte big-endian payload length, then
// the payload.
func (j *journal) appendRecord(kind journalRecordKind, v interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(v); err != nil {
		return err
	}
	header := make([]byte, 9)
	header[0] = byte(kind)
	binary.BigEndian.PutUint64(header[1:], uint64(payload.Len()))
	if _, err := j.f.Write(header); err != nil {
		return err
	}
	if _, err := j.f.Write(payload.Bytes()); err != nil {
		return err
	}
	return nil
}

func (j *journal) close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

// replayJournal reads every record of path in write order and invokes
// fn for each. A missing file is a cold start, not an error — the
// first Open of a brand-new cluster has nothing to replay.
func replayJournal(path string, fn func(kind journalRecordKind, payload []byte) error) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header := make([]byte, 9)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		kind := journalRecordKind(header[0])
		n := binary.BigEndian.Uint64(header[1:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return err
		}
		if err := fn(kind, payload); err != nil {
			return err
		}
	}
}

func decodeRecord(payload []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(payload)).Decode(v)
}
