// Package output delivers finished mip data to disk. Two handlers share
// one contract: raw passthrough and streaming zstd compression. Both
// report progress through a caller-supplied callback as bytes are
// committed.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// ZstdLevel is the default compression level of the streaming writer,
// matching the classic zstd CLI scale.
const ZstdLevel = 17

// ProgressFunc receives the running byte count after every write.
type ProgressFunc func(written, total int64)

// Handler consumes a stream of texture payload bytes. Finish must be
// called exactly once after the last WriteData.
type Handler interface {
	// BeginImage announces the next mip level. Sizes are informational.
	BeginImage(size, width, height, depth, face, level int)
	WriteData(p []byte) error
	Finish() error
}

// Writer is the raw passthrough handler.
type Writer struct {
	dst      io.Writer
	closer   io.Closer
	written  int64
	total    int64
	progress ProgressFunc
}

// NewWriter wraps an io.Writer.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst}
}

// NewFileWriter creates the named file and writes to it. Finish closes it.
func NewFileWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: create %s: %w", path, err)
	}
	return &Writer{dst: f, closer: f}, nil
}

// SetTotal fixes the byte total reported to the progress callback.
func (w *Writer) SetTotal(total int64) { w.total = total }

// SetProgress installs the progress callback.
func (w *Writer) SetProgress(fn ProgressFunc) { w.progress = fn }

// BeginImage implements Handler.
func (w *Writer) BeginImage(size, width, height, depth, face, level int) {}

// WriteData implements Handler.
func (w *Writer) WriteData(p []byte) error {
	if len(p) > 0 {
		if _, err := w.dst.Write(p); err != nil {
			return fmt.Errorf("output: write: %w", err)
		}
	}
	w.advance(int64(len(p)))
	return nil
}

// Finish implements Handler.
func (w *Writer) Finish() error {
	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			return fmt.Errorf("output: close: %w", err)
		}
	}
	return nil
}

func (w *Writer) advance(n int64) {
	w.written += n
	if w.progress != nil {
		w.progress(w.written, w.total)
	}
}

// ZstdWriter compresses the stream before it reaches the destination.
// Progress is reported in uncompressed bytes.
type ZstdWriter struct {
	Writer
	enc *zstd.Encoder
}

// NewZstdWriter wraps an io.Writer with a streaming zstd encoder at the
// default level.
func NewZstdWriter(dst io.Writer) (*ZstdWriter, error) {
	return NewZstdWriterLevel(dst, ZstdLevel)
}

// NewZstdWriterLevel wraps an io.Writer with a streaming zstd encoder.
func NewZstdWriterLevel(dst io.Writer, level int) (*ZstdWriter, error) {
	enc, err := zstd.NewWriter(dst,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("output: zstd init: %w", err)
	}
	return &ZstdWriter{Writer: Writer{dst: dst}, enc: enc}, nil
}

// NewZstdFileWriter creates the named file and compresses into it.
func NewZstdFileWriter(path string, level int) (*ZstdWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: create %s: %w", path, err)
	}
	zw, err := NewZstdWriterLevel(f, level)
	if err != nil {
		f.Close()
		return nil, err
	}
	zw.closer = f
	return zw, nil
}

// WriteData implements Handler.
func (z *ZstdWriter) WriteData(p []byte) error {
	if len(p) > 0 {
		if _, err := z.enc.Write(p); err != nil {
			return fmt.Errorf("output: zstd write: %w", err)
		}
	}
	z.advance(int64(len(p)))
	return nil
}

// Finish flushes the encoder's trailing frame, then closes the
// destination if this writer opened it.
func (z *ZstdWriter) Finish() error {
	if err := z.enc.Close(); err != nil {
		return fmt.Errorf("output: zstd flush: %w", err)
	}
	return z.Writer.Finish()
}
