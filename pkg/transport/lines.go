package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// MaxLineSize bounds one host instruction line.
const MaxLineSize = 16 << 20

// Instruction is one host-to-plugin JSON line.
type Instruction struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (i Instruction) Decode(v any) error {
	if len(i.Payload) == 0 || bytes.Equal(i.Payload, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(i.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrDecode, i.Action, err)
	}
	return nil
}

// LineWriter writes instructions as JSON lines. Safe for concurrent use.
type LineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewLineWriter wraps w, usually the plugin's stdin pipe.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{enc: json.NewEncoder(w)}
}

// Send writes {"action": action, "payload": payload} followed by a newline.
func (w *LineWriter) Send(action string, payload any) error {
	line := struct {
		Action  string `json:"action"`
		Payload any    `json:"payload,omitempty"`
	}{Action: action, Payload: payload}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(line)
}

// LineReader reads instructions one line at a time.
type LineReader struct {
	sc *bufio.Scanner
}

// NewLineReader wraps r, usually os.Stdin inside the plugin.
func NewLineReader(r io.Reader) *LineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &LineReader{sc: sc}
}

// Next returns the next instruction. Blank lines are skipped. A line that is
// not valid JSON yields an error wrapping ErrDecode; io.EOF ends the stream.
func (r *LineReader) Next() (Instruction, error) {
	for r.sc.Scan() {
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ins Instruction
		if err := json.Unmarshal(line, &ins); err != nil {
			return Instruction{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return ins, nil
	}
	if err := r.sc.Err(); err != nil {
		return Instruction{}, err
	}
	return Instruction{}, io.EOF
}
