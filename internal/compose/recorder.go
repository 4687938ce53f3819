package compose

import (
	"bytes"
	"errors"
	"io"
)

// defaultChunkSize is the read size of the recorder.
const defaultChunkSize = 64 * 1024

// Recorder accumulates emitted media chunks in arrival order.
type Recorder struct {
	mimeType  string
	chunkSize int
	chunks    [][]byte
	size      int
}

// NewRecorder creates a recorder for the given media type.
func NewRecorder(mimeType string) *Recorder {
	return &Recorder{mimeType: mimeType, chunkSize: defaultChunkSize}
}

// ReadFrom drains src, appending each read as one chunk.
func (r *Recorder) ReadFrom(src io.Reader) (int64, error) {
	var total int64
	for {
		buf := make([]byte, r.chunkSize)
		n, err := src.Read(buf)
		if n > 0 {
			r.Append(buf[:n])
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Append records one chunk. Empty chunks are dropped.
func (r *Recorder) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	r.chunks = append(r.chunks, chunk)
	r.size += len(chunk)
}

// Chunks returns the recorded chunks in emission order.
func (r *Recorder) Chunks() [][]byte {
	return r.chunks
}

// Len returns the number of recorded bytes.
func (r *Recorder) Len() int {
	return r.size
}

// MIMEType returns the media type of the recording.
func (r *Recorder) MIMEType() string {
	return r.mimeType
}

// Bytes concatenates all chunks in emission order.
func (r *Recorder) Bytes() []byte {
	return bytes.Join(r.chunks, nil)
}
