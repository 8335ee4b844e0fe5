package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

var ErrCRCMismatch = errors.New("wal: crc mismatch")

type segmentReader struct {
	reader *bufio.Reader

	// consumed counts the bytes of complete, valid records read so far; a
	// torn tail starts at this offset.
	consumed int64
}

func (s *segmentReader) next() (*Record, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(s.reader, header); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header[:4])
	wantCRC := binary.LittleEndian.Uint32(header[4:])

	body := make([]byte, length)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, err
	}
	if crc32.ChecksumIEEE(body) != wantCRC {
		return nil, ErrCRCMismatch
	}
	rec, err := decodeBody(body)
	if err != nil {
		return nil, err
	}
	s.consumed += int64(8 + len(body))
	return rec, nil
}

// Reader iterates every record in a journal directory in sequence order:
// finalized segments as listed in the index, then current.wal.
type Reader struct {
	files []string
	file  *os.File
	seg   *segmentReader
	rec   *Record
	err   error
}

func OpenReader(dir string) (*Reader, error) {
	entries, err := loadIndex(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		files = append(files, filepath.Join(dir, e.File))
	}
	current := filepath.Join(dir, currentFile)
	if _, err := os.Stat(current); err == nil {
		files = append(files, current)
	}
	return &Reader{files: files}, nil
}

// Next advances to the next record. It returns false at the end of the
// journal or on the first corrupt record; Err distinguishes the two.
func (r *Reader) Next() bool {
	for {
		if r.seg == nil {
			if len(r.files) == 0 {
				r.err = io.EOF
				return false
			}
			f, err := os.Open(r.files[0])
			r.files = r.files[1:]
			if err != nil {
				r.err = err
				return false
			}
			r.file = f
			r.seg = &segmentReader{reader: bufio.NewReaderSize(f, 1<<20)}
		}

		rec, err := r.seg.next()
		if err == nil {
			r.rec = rec
			return true
		}
		if errors.Is(err, io.EOF) {
			_ = r.file.Close()
			r.file = nil
			r.seg = nil
			continue
		}
		// a torn record at the very end of the journal is a crash
		// mid-append: everything before it already replayed cleanly
		if errors.Is(err, io.ErrUnexpectedEOF) && len(r.files) == 0 {
			_ = r.file.Close()
			r.file = nil
			r.seg = nil
			r.err = io.EOF
			return false
		}
		r.err = err
		return false
	}
}

func (r *Reader) Record() *Record { return r.rec }

// Err reports why Next returned false; io.EOF means a clean end.
func (r *Reader) Err() error { return r.err }

func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
