package wal

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWAL_AppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}

	const n = 100
	for i := 0; i < n; i++ {
		rec := &Record{
			Type: RecordPlace,
			Time: time.Now().UnixNano(),
			Data: OrderPayload{OrderID: uint64(i + 1), Side: 0, Type: 0, Price: 100, Qty: 5}.Encode(),
		}
		if err := w.Append(rec); err != nil {
			t.Fatalf("append: %v", err)
		}
		if rec.Seq != uint64(i+1) {
			t.Fatalf("record %d assigned seq %d", i, rec.Seq)
		}
		if i%20 == 0 {
			_ = w.Sync()
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := OpenReader(dir)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	count := 0
	for r.Next() {
		rec := r.Record()
		if rec.Type != RecordPlace {
			t.Fatalf("unexpected record type: %v", rec.Type)
		}
		p, err := DecodeOrderPayload(rec.Data)
		if err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if p.OrderID != rec.Seq {
			t.Fatalf("payload id %d != seq %d", p.OrderID, rec.Seq)
		}
		count++
	}
	if !errors.Is(r.Err(), io.EOF) {
		t.Errorf("reader error: %v", r.Err())
	}
	if count != n {
		t.Fatalf("expected %d records, got %d", n, count)
	}
	_ = r.Close()
}

func TestWAL_Rotation(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir, SegmentSize: 128})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	for i := 0; i < 20; i++ {
		if err := w.Append(&Record{Type: RecordCancel, Data: CancelPayload{OrderID: uint64(i)}.Encode()}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := loadIndex(dir)
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected multiple finalized segments, got %d", len(entries))
	}

	// sequencing must be contiguous across segments
	r, _ := OpenReader(dir)
	want := uint64(1)
	for r.Next() {
		if r.Record().Seq != want {
			t.Fatalf("seq %d, want %d", r.Record().Seq, want)
		}
		want++
	}
	if want != 21 {
		t.Fatalf("replayed %d records, want 20", want-1)
	}
}

func TestWAL_ResumeSequencing(t *testing.T) {
	dir := t.TempDir()

	w, _ := Open(Config{Dir: dir})
	for i := 0; i < 5; i++ {
		_ = w.Append(&Record{Type: RecordPlace, Data: CancelPayload{OrderID: uint64(i)}.Encode()})
	}
	_ = w.Close()

	w2, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec := &Record{Type: RecordPlace, Data: CancelPayload{OrderID: 6}.Encode()}
	_ = w2.Append(rec)
	if rec.Seq != 6 {
		t.Fatalf("resumed seq = %d, want 6", rec.Seq)
	}
	_ = w2.Close()
}

func TestWAL_CRCIntegrity(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	_ = w.Append(&Record{Type: RecordPlace, Time: time.Now().UnixNano(), Data: []byte("valid-record")})
	_ = w.Sync()
	_ = w.Close()

	entries, _ := loadIndex(dir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(entries))
	}
	path := filepath.Join(dir, entries[0].File)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	// flip bytes inside the body to break the checksum
	_, _ = f.WriteAt([]byte{0xFF, 0xFF, 0xFF, 0xFF}, 10)
	f.Close()

	r, err := OpenReader(dir)
	if err != nil {
		t.Fatal(err)
	}
	if r.Next() {
		t.Fatal("expected corruption detection, but got record")
	}
	if !errors.Is(r.Err(), ErrCRCMismatch) {
		t.Fatalf("expected crc mismatch, got %v", r.Err())
	}
}

// tearTail appends a deliberately incomplete frame to current.wal, the
// state a crash mid-append leaves behind.
func tearTail(t *testing.T, dir string) {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(dir, "current.wal"), os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatal(err)
	}
	frame := encodeRecord(&Record{Type: RecordPlace, Seq: 99, Time: 1, Data: CancelPayload{OrderID: 99}.Encode()})
	if _, err := f.Write(frame[:len(frame)-5]); err != nil {
		t.Fatal(err)
	}
	f.Close()
}

func TestWAL_ReplayToleratesTornTail(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		_ = w.Append(&Record{Type: RecordPlace, Data: CancelPayload{OrderID: uint64(i)}.Encode()})
	}
	_ = w.Sync()
	// no Close: simulate a crash after the torn write
	tearTail(t, dir)

	r, err := OpenReader(dir)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for r.Next() {
		count++
	}
	if count != 3 {
		t.Fatalf("replayed %d records, want 3", count)
	}
	if !errors.Is(r.Err(), io.EOF) {
		t.Fatalf("torn tail surfaced as %v, want clean end", r.Err())
	}
	_ = r.Close()
}

func TestWAL_OpenDropsTornTail(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		_ = w.Append(&Record{Type: RecordPlace, Data: CancelPayload{OrderID: uint64(i)}.Encode()})
	}
	_ = w.Sync()
	tearTail(t, dir)

	// reopening drops the torn record and resumes sequencing after the
	// last complete one
	w2, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatalf("reopen over torn tail: %v", err)
	}
	rec := &Record{Type: RecordPlace, Data: CancelPayload{OrderID: 4}.Encode()}
	_ = w2.Append(rec)
	if rec.Seq != 4 {
		t.Fatalf("resumed seq = %d, want 4", rec.Seq)
	}
	_ = w2.Close()

	r, err := OpenReader(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := uint64(1)
	for r.Next() {
		if r.Record().Seq != want {
			t.Fatalf("seq %d, want %d", r.Record().Seq, want)
		}
		want++
	}
	if want != 5 {
		t.Fatalf("replayed %d records, want 4", want-1)
	}
	if !errors.Is(r.Err(), io.EOF) {
		t.Fatalf("reader error: %v", r.Err())
	}
}

func TestWAL_TruncateBefore(t *testing.T) {
	dir := t.TempDir()

	w, _ := Open(Config{Dir: dir, SegmentSize: 128})
	for i := 0; i < 20; i++ {
		_ = w.Append(&Record{Type: RecordPlace, Data: CancelPayload{OrderID: uint64(i)}.Encode()})
	}

	entries, _ := loadIndex(dir)
	if len(entries) < 2 {
		t.Fatalf("need multiple segments, got %d", len(entries))
	}
	cut := entries[0].LastSeq

	if err := w.TruncateBefore(cut); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, entries[0].File)); !os.IsNotExist(err) {
		t.Errorf("segment %s should be gone", entries[0].File)
	}

	r, _ := OpenReader(dir)
	for r.Next() {
		if r.Record().Seq <= cut {
			t.Fatalf("record %d survived truncation at %d", r.Record().Seq, cut)
		}
	}
	_ = w.Close()
}
