// Package stream reassembles the answer endpoint's chunked response body
// into discrete frames. Chunk sizes are unconstrained: a single frame may
// span several chunks and one chunk may pack several frames.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/datachat-ai/datachat/internal/chat"
)

// Result is one decoder emission: a parsed frame, or the decode error for a
// buffer that never became parsable before the stream ended.
type Result struct {
	Frame chat.Frame
	Err   error
}

// Decoder owns the running accumulation buffer for exactly one streamed
// response. It is forward-only and not restartable; feeding is sequential
// and must not be parallelized across chunks of the same stream.
type Decoder struct {
	buf []byte
}

// NewDecoder creates a decoder scoped to a single streamed response.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes one chunk and returns the frames completed by it, in
// arrival order. Segments are cut on newline boundaries; each segment is
// appended to the running buffer and the buffer is tried as one complete
// frame. A parse failure leaves the buffer accumulating for the next
// segment, which handles frames split across chunk boundaries.
func (d *Decoder) Feed(chunk []byte) []Result {
	var results []Result
	for _, segment := range bytes.Split(chunk, []byte("\n")) {
		segment = bytes.TrimSuffix(segment, []byte("\r"))
		if len(segment) == 0 && len(d.buf) == 0 {
			continue
		}
		d.buf = append(d.buf, segment...)
		var frame chat.Frame
		if err := json.Unmarshal(d.buf, &frame); err != nil {
			continue
		}
		results = append(results, Result{Frame: frame})
		d.buf = d.buf[:0]
	}
	return results
}

// Flush reports the leftover buffer at stream end. It returns a decode-error
// result and true when the buffer holds a fragment that never parsed; the
// fragment is discarded either way.
func (d *Decoder) Flush() (Result, bool) {
	if len(bytes.TrimSpace(d.buf)) == 0 {
		d.buf = nil
		return Result{}, false
	}
	var frame chat.Frame
	err := json.Unmarshal(d.buf, &frame)
	d.buf = nil
	if err == nil {
		// Trailing whitespace-only difference; treat as a complete frame.
		return Result{Frame: frame}, true
	}
	return Result{Err: fmt.Errorf("decode response frame: %w", err)}, true
}
