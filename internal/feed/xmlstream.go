package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// TagEvent is one start or end tag of the source document.
//
// Path is the concatenation of the open element stack, e.g. "<a><b><c>" for
// the start of c. For the end of c the path is "<a><b></c>". Content is the
// trimmed text seen between the previous tag and this one.
type TagEvent struct {
	Path    string
	Content string
	Line    int
}

// TagStream is a single-pass, pull-based sequence of tag events.
// Next returns io.EOF after the root element's end tag has been returned.
// Close releases the underlying connection and may be called at any time.
type TagStream interface {
	Next() (TagEvent, error)
	Close() error
}

// XMLTagStream produces tag events from an XML byte stream, reading from the
// underlying reader only as events are requested.
type XMLTagStream struct {
	rc      io.ReadCloser
	dec     *xml.Decoder
	root    string
	path    string
	offsets []int
	names   []string
	text    strings.Builder
	started bool
	done    bool
	closed  bool
}

// NewXMLTagStream wraps rc. The document's root element must be root.
func NewXMLTagStream(rc io.ReadCloser, root string) *XMLTagStream {
	dec := xml.NewDecoder(rc)
	dec.CharsetReader = charset.NewReaderLabel
	return &XMLTagStream{rc: rc, dec: dec, root: root}
}

// Next returns the next start or end tag.
func (s *XMLTagStream) Next() (TagEvent, error) {
	if s.done {
		return TagEvent{}, io.EOF
	}
	if s.closed {
		return TagEvent{}, fmt.Errorf("%w: stream closed", ErrTransport)
	}

	for {
		tok, err := s.dec.RawToken()
		if err != nil {
			return TagEvent{}, s.tokenError(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := qualifiedName(t.Name)
			if !s.started {
				if name != s.root {
					return TagEvent{}, structureError(s.line(), "root element is <%s>, expected <%s>", name, s.root)
				}
				s.started = true
			}
			content := s.takeText()
			s.offsets = append(s.offsets, len(s.path))
			s.names = append(s.names, name)
			s.path += "<" + name + ">"
			return TagEvent{Path: s.path, Content: content, Line: s.line()}, nil

		case xml.EndElement:
			name := qualifiedName(t.Name)
			n := len(s.names)
			if n == 0 || s.names[n-1] != name {
				return TagEvent{}, structureError(s.line(), "unexpected </%s>", name)
			}
			content := s.takeText()
			s.path = s.path[:s.offsets[n-1]]
			s.offsets = s.offsets[:n-1]
			s.names = s.names[:n-1]
			if n == 1 {
				s.done = true
			}
			return TagEvent{Path: s.path + "</" + name + ">", Content: content, Line: s.line()}, nil

		case xml.CharData:
			if s.started {
				s.text.Write(t)
			}
		}
	}
}

// Close closes the underlying reader. It is safe to call more than once.
func (s *XMLTagStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rc.Close()
}

func (s *XMLTagStream) tokenError(err error) error {
	var syntaxErr *xml.SyntaxError
	switch {
	case errors.Is(err, io.EOF):
		if !s.started {
			return structureError(s.line(), "empty response, expected <%s>", s.root)
		}
		return structureError(s.line(), "response ended before </%s>", s.root)
	case errors.As(err, &syntaxErr):
		return structureError(syntaxErr.Line, "%s", syntaxErr.Msg)
	default:
		return fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}
}

func (s *XMLTagStream) takeText() string {
	content := strings.TrimSpace(s.text.String())
	s.text.Reset()
	return content
}

func (s *XMLTagStream) line() int {
	line, _ := s.dec.InputPos()
	return line
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
