package ai

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

type sseEvent struct {
	Event string
	Data  string
}

type sseReader struct {
	r   *bufio.Reader
	eof bool
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next dispatched event. An event still pending when the
// body ends is returned before io.EOF.
func (s *sseReader) next() (sseEvent, error) {
	var (
		ev      sseEvent
		data    []string
		pending bool
	)
	for {
		if s.eof {
			if pending {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			return sseEvent{}, io.EOF
		}

		line, err := s.r.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return sseEvent{}, err
			}
			s.eof = true
			if line == "" {
				continue
			}
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if pending {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Event = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		}
	}
}
