package trace

import (
	"io"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

var TRACE_MAGIC = "EVKT"

type TraceHeader struct {
	// MAGIC ("EVKT")
	Magic string `struc:"[4]byte"`
	// file format version
	Version uint32
	// size of the event table
	Events uint32
}

type TraceWriter struct {
	w  io.Writer
	zw *snappy.Writer
}

func NewWriter(w io.Writer, events int) (*TraceWriter, error) {
	header := &TraceHeader{
		Magic:   TRACE_MAGIC,
		Version: 1,
		Events:  uint32(events),
	}
	if err := struc.Pack(w, header); err != nil {
		return nil, errors.Wrap(err, "failed to pack header")
	}
	return &TraceWriter{w: w, zw: snappy.NewBufferedWriter(w)}, nil
}

func (t *TraceWriter) Pack(r *Record) error {
	return struc.Pack(t.zw, r)
}

// Close flushes the compressed stream. The underlying writer stays open.
func (t *TraceWriter) Close() error {
	return t.zw.Close()
}

type TraceReader struct {
	zr     *snappy.Reader
	Header TraceHeader
}

func NewReader(r io.Reader) (*TraceReader, error) {
	t := &TraceReader{}
	if err := struc.Unpack(r, &t.Header); err != nil {
		return nil, errors.Wrap(err, "failed to unpack header")
	}
	if t.Header.Magic != TRACE_MAGIC {
		return nil, errors.New("invalid trace file magic")
	}
	t.zr = snappy.NewReader(r)
	return t, nil
}

// Next returns io.EOF after the last record.
func (t *TraceReader) Next() (*Record, error) {
	r := &Record{}
	if err := struc.Unpack(t.zr, r); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errors.Wrap(err, "truncated record")
		}
		return nil, err
	}
	return r, nil
}
