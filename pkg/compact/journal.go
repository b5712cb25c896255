package compact

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// Journal op codes.
const (
	JournalRepoint     = "repoint"
	JournalDeleteEdge  = "delete_edge"
	JournalDeleteNode  = "delete_node"
	JournalDeleteChild = "delete_child"
	JournalGuardSkip   = "guard_skip"
)

// JournalEntry is one recorded mutation of a compaction run. Entries let
// an operator reconstruct what a run did to a schematisation without
// diffing two multi-gigabyte containers.
type JournalEntry struct {
	Seq         uint64 `json:"seq"`
	RunID       string `json:"run_id"`
	Op          string `json:"op"`
	Layer       string `json:"layer,omitempty"`
	FeatureID   int64  `json:"feature_id,omitempty"`
	NodeID      int64  `json:"node_id,omitempty"`
	Replacement int64  `json:"replacement,omitempty"`
	Timestamp   int64  `json:"ts"`
}

// Journal is an append-only, snappy-compressed deletion journal. Each
// frame is length-prefixed and carries a CRC32 of the compressed
// payload so truncated or corrupted tails are detected on replay.
type Journal struct {
	mu    sync.Mutex
	file  *os.File
	w     *bufio.Writer
	runID string
	seq   uint64
}

// frame layout: [seq:8][compressed_len:4][compressed][crc32:4]
const journalFrameHeader = 12

// OpenJournal creates a new journal file in dir, named after a fresh
// run ID.
func OpenJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	runID := uuid.New().String()
	path := filepath.Join(dir, fmt.Sprintf("compact-%s.journal", runID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}
	return &Journal{
		file:  file,
		w:     bufio.NewWriter(file),
		runID: runID,
	}, nil
}

// RunID returns the journal's run identifier.
func (j *Journal) RunID() string {
	return j.runID
}

// Record appends one entry.
func (j *Journal) Record(e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	e.Seq = j.seq
	e.RunID = j.runID
	e.Timestamp = time.Now().UnixNano()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	compressed := snappy.Encode(nil, data)

	header := make([]byte, journalFrameHeader)
	binary.BigEndian.PutUint64(header[0:8], e.Seq)
	binary.BigEndian.PutUint32(header[8:12], uint32(len(compressed)))
	if _, err := j.w.Write(header); err != nil {
		return fmt.Errorf("write journal header: %w", err)
	}
	if _, err := j.w.Write(compressed); err != nil {
		return fmt.Errorf("write journal payload: %w", err)
	}
	crc := make([]byte, 4)
	binary.BigEndian.PutUint32(crc, crc32.ChecksumIEEE(compressed))
	if _, err := j.w.Write(crc); err != nil {
		return fmt.Errorf("write journal crc: %w", err)
	}
	return nil
}

// Close flushes and syncs the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.w.Flush(); err != nil {
		return err
	}
	if err := j.file.Sync(); err != nil {
		return err
	}
	return j.file.Close()
}

// ReadJournal decodes all entries from a journal file. A truncated or
// corrupted tail ends the replay at the last intact frame.
func ReadJournal(path string) ([]JournalEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	var entries []JournalEntry
	for {
		header := make([]byte, journalFrameHeader)
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return entries, nil
			}
			return entries, err
		}
		length := binary.BigEndian.Uint32(header[8:12])
		compressed := make([]byte, length)
		if _, err := io.ReadFull(r, compressed); err != nil {
			return entries, nil
		}
		crc := make([]byte, 4)
		if _, err := io.ReadFull(r, crc); err != nil {
			return entries, nil
		}
		if crc32.ChecksumIEEE(compressed) != binary.BigEndian.Uint32(crc) {
			return entries, nil
		}
		data, err := snappy.Decode(nil, compressed)
		if err != nil {
			return entries, nil
		}
		var e JournalEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return entries, nil
		}
		entries = append(entries, e)
	}
}
