package process

import (
	"bufio"
	"errors"
	"io"
)

const readBufferSize = 64 * 1024

// readLines calls emit for every newline-terminated line of r, and for a
// trailing line without newline. Lines longer than limit bytes are
// truncated to limit and the rest of the line is discarded, so reading
// continues with the next line. Returns nil at EOF.
func readLines(r io.Reader, limit int, emit func(string)) error {
	br := bufio.NewReaderSize(r, readBufferSize)
	line := make([]byte, 0, readBufferSize)
	for {
		chunk, isPrefix, err := br.ReadLine()
		if room := limit - len(line); room > 0 && len(chunk) > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}
		if err != nil {
			if len(line) > 0 {
				emit(string(line))
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if isPrefix {
			continue
		}
		emit(string(line))
		line = line[:0]
	}
}
