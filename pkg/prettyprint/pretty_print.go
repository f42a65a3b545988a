package prettyprint

import (
	"bytes"
	"fmt"
	"strings"
)

// Doc is a renderable document. Rules, atoms and templates all format
// themselves into Docs so that the same tree can be rendered as text or
// inspected when debugging.
type Doc interface {
	// String returns the rendered text.
	String() string
	// Debug returns a representation of the doc tree, for debugging.
	Debug() string
}

// Text

type text struct {
	str string
}

var _ Doc = &text{}

func Text(s string) Doc {
	return &text{
		str: s,
	}
}

func Textf(format string, args ...interface{}) Doc {
	return Text(fmt.Sprintf(format, args...))
}

func (s *text) String() string {
	return s.str
}

func (s *text) Debug() string {
	return fmt.Sprintf("Text(%#v)", s.str)
}

// Empty

type empty struct{}

var Empty Doc = &empty{}

func (e *empty) String() string {
	return ""
}

func (empty) Debug() string {
	return "Empty"
}

// Seq

type concat struct {
	docs []Doc
}

func Seq(docs ...Doc) Doc {
	return &concat{
		docs: docs,
	}
}

func (c *concat) String() string {
	buf := bytes.NewBufferString("")
	for _, doc := range c.docs {
		buf.WriteString(doc.String())
	}
	return buf.String()
}

func (c *concat) Debug() string {
	docStrs := make([]string, len(c.docs))
	for idx := range c.docs {
		docStrs[idx] = c.docs[idx].Debug()
	}
	return fmt.Sprintf("Seq(%s)", strings.Join(docStrs, ", "))
}

// Newline

type newline struct{}

var Newline Doc = &newline{}

func (newline) String() string {
	return "\n"
}

func (newline) Debug() string {
	return "Newline"
}

// Combinators

func Join(docs []Doc, sep Doc) Doc {
	var out []Doc
	for idx, doc := range docs {
		if idx > 0 {
			out = append(out, sep)
		}
		out = append(out, doc)
	}
	return Seq(out...)
}

// Surround renders `open doc close`, e.g. a parenthesized argument list.
func Surround(open string, doc Doc, close string) Doc {
	return Seq(Text(open), doc, Text(close))
}

var CommaSpace = Text(", ")

// Lines joins docs with newlines, dropping empty ones.
func Lines(docs []Doc) Doc {
	var nonEmpty []Doc
	for _, doc := range docs {
		if doc == Empty {
			continue
		}
		nonEmpty = append(nonEmpty, doc)
	}
	return Join(nonEmpty, Newline)
}
