// Package scanstream implements the binary stream scanner described
// in spec §4.3.1: a single open-read-loop pass over fixed-width
// records, answering one of three query modes against a ScanManager
// and emitting results in either text or binary wire form.
package scanstream

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

// Mode selects which ScanManager query a record is answered with.
type Mode int

const (
	ExpandedHash Mode = iota
	HashCount
	ApproximateHashCount
)

// Format selects the wire encoding of emitted result records.
type Format int

const (
	TextOutput Format = iota
	BinaryOutput
)

// Queryer is the subset of *hashdb.ScanManager the scanner needs; kept
// as an interface so tests can supply a fake without standing up a
// real database.
type Queryer interface {
	FindExpandedHashJSON(blockHash []byte) (string, error)
	FindHashCount(blockHash []byte) (int, error)
	FindApproximateHashCount(blockHash []byte) (int, error)
}

// Scanner holds the fixed parameters of one stream-scan pass.
type Scanner struct {
	Queryer      Queryer
	HashSize     int
	MetadataSize int
	Mode         Mode
	Format       Format
}

func (s *Scanner) recordSize() int {
	return s.HashSize + s.MetadataSize
}

// Run consumes records from r until EOF, the zero-hash terminator, or
// a desynchronizing short read, writing results to w. It returns an
// empty string on a clean stop and the spec's
// "unexpected input size N is not R in scan stream" message otherwise.
func (s *Scanner) Run(r io.Reader, w io.Writer) string {
	recSize := s.recordSize()
	buf := make([]byte, recSize)

	for {
		n, err := io.ReadFull(r, buf)
		if err == io.EOF {
			return ""
		}
		if err == io.ErrUnexpectedEOF {
			return fmt.Sprintf("unexpected input size %d is not %d in scan stream", n, recSize)
		}
		if err != nil {
			return err.Error()
		}

		hashBytes := append([]byte{}, buf[:s.HashSize]...)
		metadata := append([]byte{}, buf[s.HashSize:recSize]...)

		if isZero(hashBytes) {
			return ""
		}

		payload, hit, err := s.query(hashBytes)
		if err != nil {
			return err.Error()
		}
		if !hit {
			continue
		}

		if err := s.emit(w, metadata, payload); err != nil {
			return err.Error()
		}
	}
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func (s *Scanner) query(hashBytes []byte) (payload []byte, hit bool, err error) {
	switch s.Mode {
	case ExpandedHash:
		raw, err := s.Queryer.FindExpandedHashJSON(hashBytes)
		if err != nil {
			return nil, false, err
		}
		if raw == "" {
			return nil, false, nil
		}
		return []byte(raw), true, nil

	case HashCount:
		count, err := s.Queryer.FindHashCount(hashBytes)
		if err != nil {
			return nil, false, err
		}
		if count == 0 {
			return nil, false, nil
		}
		raw, err := json.Marshal(struct {
			BlockHash string `json:"block_hash"`
			Count     int    `json:"count"`
		}{hex.EncodeToString(hashBytes), count})
		return raw, err == nil, err

	case ApproximateHashCount:
		count, err := s.Queryer.FindApproximateHashCount(hashBytes)
		if err != nil {
			return nil, false, err
		}
		if count == 0 {
			return nil, false, nil
		}
		raw, err := json.Marshal(struct {
			BlockHash        string `json:"block_hash"`
			ApproximateCount int    `json:"approximate_count"`
		}{hex.EncodeToString(hashBytes), count})
		return raw, err == nil, err
	}
	return nil, false, fmt.Errorf("unknown scan mode %d", s.Mode)
}

func (s *Scanner) emit(w io.Writer, metadata, payload []byte) error {
	switch s.Format {
	case TextOutput:
		_, err := fmt.Fprintf(w, "%s%s\n", hex.EncodeToString(metadata), payload)
		return err
	case BinaryOutput:
		if _, err := w.Write(metadata); err != nil {
			return err
		}
		_, err := w.Write(payload)
		return err
	}
	return fmt.Errorf("unknown output format %d", s.Format)
}
