// Package parser reads typed edge lists. One edge per line:
//
//	src dst srcType:dstType:edgeType[:timestamp]
//
// IDs are unsigned integers, type labels are unsigned 64-bit integers, the
// timestamp defaults to 0. Blank lines and lines starting with '#' are
// skipped. The same format serves both the base snapshot and the stream.
package parser

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EdgeRecord is one parsed input edge.
type EdgeRecord struct {
	Src       uint32
	Dst       uint32
	SrcType   uint64
	DstType   uint64
	EdgeType  uint64
	Timestamp int64
}

// ParseBaseGraph reads every edge of the base snapshot.
func ParseBaseGraph(path string) ([]EdgeRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening base graph: %w", err)
	}
	defer file.Close()

	var edges []EdgeRecord
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := ParseEdgeLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		edges = append(edges, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading base graph: %w", err)
	}
	return edges, nil
}

// ParseEdgeLine parses a single edge line.
func ParseEdgeLine(line string) (EdgeRecord, error) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return EdgeRecord{}, fmt.Errorf("expected 3 fields, got %d", len(parts))
	}

	src, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return EdgeRecord{}, fmt.Errorf("source vertex id %q: %w", parts[0], err)
	}
	dst, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return EdgeRecord{}, fmt.Errorf("destination vertex id %q: %w", parts[1], err)
	}

	attrs := strings.Split(parts[2], ":")
	if len(attrs) != 3 && len(attrs) != 4 {
		return EdgeRecord{}, fmt.Errorf("edge attributes %q: expected srcType:dstType:edgeType[:timestamp]", parts[2])
	}
	srcType, err := strconv.ParseUint(attrs[0], 10, 64)
	if err != nil {
		return EdgeRecord{}, fmt.Errorf("source type %q: %w", attrs[0], err)
	}
	dstType, err := strconv.ParseUint(attrs[1], 10, 64)
	if err != nil {
		return EdgeRecord{}, fmt.Errorf("destination type %q: %w", attrs[1], err)
	}
	edgeType, err := strconv.ParseUint(attrs[2], 10, 64)
	if err != nil {
		return EdgeRecord{}, fmt.Errorf("edge type %q: %w", attrs[2], err)
	}

	var timestamp int64
	if len(attrs) == 4 {
		timestamp, err = strconv.ParseInt(attrs[3], 10, 64)
		if err != nil {
			return EdgeRecord{}, fmt.Errorf("timestamp %q: %w", attrs[3], err)
		}
	}

	return EdgeRecord{
		Src:       uint32(src),
		Dst:       uint32(dst),
		SrcType:   srcType,
		DstType:   dstType,
		EdgeType:  edgeType,
		Timestamp: timestamp,
	}, nil
}

// StreamReader reads stream edges in batches.
type StreamReader struct {
	file    *os.File
	scanner *bufio.Scanner
	path    string
	lineNo  int
}

// NewStreamReader opens the stream file.
func NewStreamReader(path string) (*StreamReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	return &StreamReader{
		file:    file,
		scanner: bufio.NewScanner(file),
		path:    path,
	}, nil
}

// NextBatch returns up to batchSize edges; a nil slice means the stream is
// exhausted.
func (r *StreamReader) NextBatch(batchSize int) ([]EdgeRecord, error) {
	var batch []EdgeRecord
	for len(batch) < batchSize && r.scanner.Scan() {
		r.lineNo++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := ParseEdgeLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", r.path, r.lineNo, err)
		}
		batch = append(batch, rec)
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}
	return batch, nil
}

// Close releases the stream file.
func (r *StreamReader) Close() error {
	return r.file.Close()
}
