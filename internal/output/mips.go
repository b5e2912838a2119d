package output

import (
	"fmt"

	"github.com/texforge/texforge/internal/pipeline"
)

// TotalBytes sums the payload size of a mip set, for progress totals.
func TotalBytes(mips []pipeline.Mip) int64 {
	var n int64
	for _, m := range mips {
		n += int64(len(m.Data))
	}
	return n
}

// WriteMips streams a committed mip set through the handler in delivery
// order and finishes the stream.
func WriteMips(h Handler, mips []pipeline.Mip) error {
	for _, m := range mips {
		h.BeginImage(len(m.Data), m.Width, m.Height, m.Depth, m.Face, m.Level)
		if err := h.WriteData(m.Data); err != nil {
			return fmt.Errorf("output: mip %d: %w", m.Level, err)
		}
	}
	return h.Finish()
}
