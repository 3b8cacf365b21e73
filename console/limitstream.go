package console

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// LimitFilterOutputStream wraps a writer, passing through at most
// Limit bytes of subprocess stdout/stderr before emitting a single
// fixed suffix and silently dropping everything after — so a
// misbehaving external tool (git, patch, diff3) can't flood the
// console or a log file.
type LimitFilterOutputStream struct {
	Dest    io.Writer
	Limit   int64
	written int64
	tripped bool
}

func (s *LimitFilterOutputStream) Write(p []byte) (int, error) {
	total := len(p)
	if s.tripped {
		return total, nil
	}
	remaining := s.Limit - s.written
	if remaining <= 0 {
		s.trip()
		return total, nil
	}
	n := int64(len(p))
	if n > remaining {
		if _, err := s.Dest.Write(p[:remaining]); err != nil {
			return 0, err
		}
		s.written += remaining
		s.trip()
		return total, nil
	}
	if _, err := s.Dest.Write(p); err != nil {
		return 0, err
	}
	s.written += n
	return total, nil
}

func (s *LimitFilterOutputStream) trip() {
	s.tripped = true
	fmt.Fprintf(s.Dest, "\n[output truncated after %s]\n", humanize.Bytes(uint64(s.Limit)))
}
