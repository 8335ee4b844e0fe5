package wal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
)

const indexFile = "wal_index.json"

type indexEntry struct {
	File      string `json:"file"`
	FirstSeq  uint64 `json:"first_seq"`
	LastSeq   uint64 `json:"last_seq"`
	Timestamp string `json:"timestamp"`
}

func appendIndexEntry(dir string, e indexEntry) error {
	path := filepath.Join(dir, indexFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// loadIndex returns all finalized segment entries in append order. A
// missing index file means a fresh journal, not an error.
func loadIndex(dir string) ([]indexEntry, error) {
	f, err := os.Open(filepath.Join(dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []indexEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e indexEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if e.File == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

func rewriteIndex(dir string, entries []indexEntry) error {
	tmp := filepath.Join(dir, indexFile+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, indexFile))
}
