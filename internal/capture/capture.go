// Package capture records inbound telemetry to a CBOR stream so that
// rejected topics and malformed payloads can be inspected and replayed.
package capture

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Outcome is what the pipeline did with a captured message.
type Outcome uint8

const (
	OutcomeAccepted Outcome = iota + 1
	OutcomeMalformed
	OutcomeRejected
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeDropped:
		return "dropped"
	}
	return "unknown"
}

// Record is one captured inbound message.
// CBOR encoding uses integer keys for compactness.
type Record struct {
	Time    time.Time `cbor:"1,keyasint"`
	Session string    `cbor:"2,keyasint,omitempty"`
	Topic   string    `cbor:"3,keyasint"`
	Payload []byte    `cbor:"4,keyasint"`
	Outcome Outcome   `cbor:"5,keyasint"`
	Reason  string    `cbor:"6,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor decoder mode: %v", err))
	}
}

// Sink receives captured records.
type Sink interface {
	Capture(rec Record)
}

// Writer appends records to a CBOR stream.
// It is safe for concurrent use from multiple goroutines.
type Writer struct {
	mu      sync.Mutex
	closer  io.Closer
	encoder *cbor.Encoder
	session string
	closed  bool
	err     error
}

// NewWriter writes records to w, tagging each with session.
func NewWriter(w io.Writer, session string) *Writer {
	cw := &Writer{encoder: encMode.NewEncoder(w), session: session}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw
}

// Create opens path for appending (creating it with 0644 if needed).
func Create(path, session string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	return NewWriter(f, session), nil
}

// Capture writes rec. Encoding errors are kept for Err and never
// interrupt the caller.
func (w *Writer) Capture(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if rec.Session == "" {
		rec.Session = w.session
	}
	if err := w.encoder.Encode(rec); err != nil && w.err == nil {
		w.err = err
	}
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close closes the underlying file. Safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Reader streams records from a CBOR capture.
type Reader struct {
	closer  io.Closer
	decoder *cbor.Decoder
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	cr := &Reader{decoder: decMode.NewDecoder(r)}
	if c, ok := r.(io.Closer); ok {
		cr.closer = c
	}
	return cr
}

// Open opens a capture file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	return NewReader(f), nil
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.decoder.Decode(&rec); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("decode capture record: %w", err)
	}
	return rec, nil
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
