package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const currentFile = "current.wal"

type Config struct {
	Dir             string
	SegmentSize     uint64        // max segment bytes before rotation
	SegmentDuration time.Duration // max segment age before rotation
}

func (c *Config) applyDefaults() {
	if c.Dir == "" {
		c.Dir = "./wal_data"
	}
	if c.SegmentSize == 0 {
		c.SegmentSize = 2 * 1024 * 1024
	}
	if c.SegmentDuration == 0 {
		c.SegmentDuration = 5 * time.Minute
	}
}

// WAL appends framed records to current.wal, rotating it into numbered
// segments recorded in the index. Safe for concurrent appenders.
type WAL struct {
	cfg Config

	mu              sync.Mutex
	file            *os.File
	writer          *bufio.Writer
	seq             uint64
	segmentID       int
	segmentStartSeq uint64
	bytesWritten    uint64
	lastRotationAt  time.Time
}

// Open creates or resumes the journal in cfg.Dir. Sequencing resumes after
// the last indexed segment; a current.wal left behind by a crash is
// finalized first so replay sees it.
func Open(cfg Config) (*WAL, error) {
	cfg.applyDefaults()
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	entries, err := loadIndex(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("load wal index: %w", err)
	}
	var segID int
	var seq uint64
	if n := len(entries); n > 0 {
		last := entries[n-1]
		if id, err := strconv.Atoi(strings.TrimSuffix(last.File, ".wal")); err == nil {
			segID = id
		}
		seq = last.LastSeq
	}

	// a non-empty current.wal from a previous run holds records the index
	// does not know about yet; count them so sequencing stays monotonic
	path := filepath.Join(cfg.Dir, currentFile)
	if _, statErr := os.Stat(path); statErr == nil {
		first, last, valid, tailErr := scanSegmentSeqs(path)
		if tailErr != nil && !errors.Is(tailErr, io.EOF) {
			if !errors.Is(tailErr, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("scan leftover segment: %w", tailErr)
			}
			// a crash mid-append left a torn record; drop it and keep
			// everything before it
			if err := os.Truncate(path, valid); err != nil {
				return nil, err
			}
		}
		if last > 0 {
			w := &WAL{cfg: cfg, seq: last, segmentID: segID, segmentStartSeq: first}
			if err := w.finalizeCurrent(); err != nil {
				return nil, fmt.Errorf("finalize leftover segment: %w", err)
			}
			segID = w.segmentID
			seq = last
		} else if err := os.Remove(path); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &WAL{
		cfg:             cfg,
		file:            f,
		writer:          bufio.NewWriterSize(f, 1<<20),
		seq:             seq,
		segmentID:       segID,
		segmentStartSeq: seq + 1,
		lastRotationAt:  time.Now(),
	}, nil
}

// Append assigns the next sequence number to rec and writes it. The record
// is buffered; call Sync for durability.
func (w *WAL) Append(rec *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec.Seq = w.seq + 1
	if rec.Time == 0 {
		rec.Time = time.Now().UnixNano()
	}
	data := encodeRecord(rec)

	if w.shouldRotate(len(data)) {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	n, err := w.writer.Write(data)
	if err != nil {
		return err
	}
	w.seq++
	w.bytesWritten += uint64(n)
	return nil
}

// LastSeq reports the sequence number of the most recently appended record.
func (w *WAL) LastSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close flushes and finalizes the open segment so a subsequent reader sees
// every record through the index alone.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	if w.bytesWritten == 0 {
		return os.Remove(filepath.Join(w.cfg.Dir, currentFile))
	}
	w.file = nil
	return w.finalizeCurrent()
}

// TruncateBefore removes finalized segments whose records are all covered
// by seq (typically the sequence captured in a snapshot).
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := loadIndex(w.cfg.Dir)
	if err != nil {
		return err
	}
	var kept []indexEntry
	for _, e := range entries {
		if e.LastSeq <= seq {
			if err := os.Remove(filepath.Join(w.cfg.Dir, e.File)); err != nil && !os.IsNotExist(err) {
				return err
			}
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == len(entries) {
		return nil
	}
	return rewriteIndex(w.cfg.Dir, kept)
}

func (w *WAL) shouldRotate(nextSize int) bool {
	if w.bytesWritten == 0 {
		return false
	}
	if w.bytesWritten+uint64(nextSize) >= w.cfg.SegmentSize {
		return true
	}
	return time.Since(w.lastRotationAt) >= w.cfg.SegmentDuration
}

func (w *WAL) rotate() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	if err := w.finalizeCurrent(); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(w.cfg.Dir, currentFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.writer = bufio.NewWriterSize(f, 1<<20)
	w.segmentStartSeq = w.seq + 1
	w.bytesWritten = 0
	w.lastRotationAt = time.Now()
	return nil
}

// finalizeCurrent renames current.wal into the next numbered segment and
// records it in the index. Caller must have closed the file handle.
func (w *WAL) finalizeCurrent() error {
	newID := w.segmentID + 1
	name := fmt.Sprintf("%06d.wal", newID)
	oldPath := filepath.Join(w.cfg.Dir, currentFile)
	if err := os.Rename(oldPath, filepath.Join(w.cfg.Dir, name)); err != nil {
		return err
	}
	w.segmentID = newID
	return appendIndexEntry(w.cfg.Dir, indexEntry{
		File:      name,
		FirstSeq:  w.segmentStartSeq,
		LastSeq:   w.seq,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// scanSegmentSeqs reads a segment and reports its first and last sequence
// numbers plus the byte offset past its last complete record. tailErr is
// the record-level error that ended the scan: io.EOF for a clean end,
// io.ErrUnexpectedEOF for a torn trailing record.
func scanSegmentSeqs(path string) (first, last uint64, valid int64, tailErr error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()
	r := &segmentReader{reader: bufio.NewReaderSize(f, 1<<20)}
	for {
		rec, err := r.next()
		if err != nil {
			return first, last, r.consumed, err
		}
		if first == 0 {
			first = rec.Seq
		}
		last = rec.Seq
	}
}
