package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/lattice/pkg/codec"
	"github.com/aretw0/lattice/pkg/protocol"
)

// HeaderSize is the length of the big-endian frame length prefix.
const HeaderSize = 4

// ErrDecode marks a complete frame whose payload could not be decoded.
// The stream stays usable after it.
var ErrDecode = errors.New("transport: frame decode failed")

// EncodeFrame prefixes payload with its 4-byte big-endian length.
func EncodeFrame(payload []byte) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame
}

// Writer sends one encoded message per frame. Safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w, usually the plugin's stdout.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send encodes msg and writes it as a single frame. A message that cannot be
// encoded is replaced by a "log" message describing the failure.
func (w *Writer) Send(msg any) error {
	payload, err := codec.Marshal(msg)
	if err != nil {
		payload, err = codec.Marshal(protocol.Log(fmt.Sprintf("failed to encode message: %v", err)))
		if err != nil {
			return err
		}
	}
	return w.write(EncodeFrame(payload))
}

// SendLog sends a diagnostic message.
func (w *Writer) SendLog(payload any) error {
	return w.Send(protocol.Log(codec.Escape(payload)))
}

func (w *Writer) write(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.w.Write(frame)
	return err
}

// Decoder reassembles frames from arbitrarily split chunks.
type Decoder struct {
	buf []byte
}

// Feed appends chunk and returns every message completed by it, in order.
// Frames that fail to decode are skipped and reported through the joined error.
func (d *Decoder) Feed(chunk []byte) ([]any, error) {
	d.buf = append(d.buf, chunk...)

	var (
		msgs []any
		errs []error
	)
	for len(d.buf) >= HeaderSize {
		size := int(binary.BigEndian.Uint32(d.buf))
		if len(d.buf) < HeaderSize+size {
			break
		}
		payload := d.buf[HeaderSize : HeaderSize+size]
		msg, err := codec.Unmarshal(payload)
		d.buf = d.buf[HeaderSize+size:]
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrDecode, err))
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return msgs, errors.Join(errs...)
}

// Buffered returns the number of bytes waiting for the rest of their frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reader reads frames from a stream, blocking until each is complete.
type Reader struct {
	r      io.Reader
	header [HeaderSize]byte
}

// NewReader wraps r, usually the host's end of the plugin's stdout.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the next decoded message. Errors wrapping ErrDecode are
// per-frame; any other error ends the stream.
func (r *Reader) Next() (any, error) {
	if _, err := io.ReadFull(r.r, r.header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(r.header[:])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	msg, err := codec.Unmarshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return msg, nil
}
