package srt

import "bytes"

// Access unit delimiter NAL header bytes: H.264 type 9 and HEVC type 35.
const (
	audH264 = 0x09
	audHEVC = 0x46
)

var startCode3 = []byte{0, 0, 1}

// auSplitter cuts an Annex B byte stream into access units at access unit
// delimiters. Publishers that emit AUDs (x264/x265 defaults for streaming)
// get exact picture boundaries; a stream without them is flushed as one
// unit when the connection closes.
type auSplitter struct {
	buf []byte
	// scanned marks how far boundary scanning has progressed, so bytes are
	// not rescanned on every push.
	scanned int
}

func newAUSplitter() *auSplitter {
	return &auSplitter{}
}

// push appends chunk to the pending stream and returns any access units it
// completed. Returned slices are copies.
func (s *auSplitter) push(chunk []byte) [][]byte {
	s.buf = append(s.buf, chunk...)

	var units [][]byte
	for {
		cut := s.nextBoundary()
		if cut < 0 {
			return units
		}
		units = append(units, append([]byte(nil), s.buf[:cut]...))
		s.buf = s.buf[cut:]
		// The buffer now opens with the delimiter start code; skip it on
		// the next scan.
		s.scanned = 4
	}
}

// nextBoundary returns the offset where the next access unit delimiter's
// start code begins, or -1. A delimiter at offset zero opens the unit under
// assembly and is not a boundary.
func (s *auSplitter) nextBoundary() int {
	// A start code may straddle the previous scan end.
	from := s.scanned - 4
	if from < 0 {
		from = 0
	}

	for {
		i := bytes.Index(s.buf[from:], startCode3)
		if i < 0 || from+i+3 >= len(s.buf) {
			s.scanned = len(s.buf)
			return -1
		}
		pos := from + i
		nal := s.buf[pos+3]
		if nal == audH264 || nal == audHEVC {
			// Fold a leading zero into the boundary for 4-byte start codes.
			if pos > 0 && s.buf[pos-1] == 0 {
				pos--
			}
			if pos > 0 {
				return pos
			}
		}
		from = from + i + 3
	}
}

// flush returns whatever is buffered as a final access unit.
func (s *auSplitter) flush() []byte {
	if len(s.buf) == 0 {
		return nil
	}
	out := append([]byte(nil), s.buf...)
	s.buf = nil
	s.scanned = 0
	return out
}
