package kicadsexp

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"
)

// maxInlineWidth is the longest list the writer keeps on a single line.
const maxInlineWidth = 100

// Node builds a list whose head is the bare symbol name.
// Example: Node("at", Num(1.5), Num(2)) is (at 1.5 2)
func Node(name string, args ...Sexp) *List {
	l := NewList(Symbol(name))
	return l.Append(args...)
}

// Num formats a millimetre or degree value the way KiCad writes it: at most
// six decimals, no trailing zeros, and never "-0".
func Num(v float64) Symbol {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		r = 0
	}
	return Symbol(strconv.FormatFloat(r, 'f', -1, 64))
}

// Int formats an integer atom.
func Int(v int) Symbol {
	return Symbol(strconv.Itoa(v))
}

// Write serializes expressions to w, one top-level expression per line.
// Short lists stay on one line, longer ones put each nested list on its own
// line indented by two spaces.
func Write(w io.Writer, exprs ...Sexp) error {
	bw := bufio.NewWriter(w)
	for _, e := range exprs {
		writeExpr(bw, e, 0)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Format returns the serialized form of a single expression.
func Format(e Sexp) string {
	var sb strings.Builder
	_ = Write(&sb, e)
	return sb.String()
}

func writeExpr(w *bufio.Writer, e Sexp, indent int) {
	l, ok := e.(*List)
	if !ok {
		w.WriteString(e.String())
		return
	}

	if isInline(l) {
		w.WriteString(l.String())
		return
	}

	w.WriteByte('(')
	broken := false
	for i, elem := range l.elements {
		_, isList := elem.(*List)
		if isList || broken {
			broken = true
			w.WriteByte('\n')
			w.WriteString(strings.Repeat("  ", indent+1))
			writeExpr(w, elem, indent+1)
			continue
		}
		if i > 0 {
			w.WriteByte(' ')
		}
		w.WriteString(elem.String())
	}
	if broken {
		w.WriteByte('\n')
		w.WriteString(strings.Repeat("  ", indent))
	}
	w.WriteByte(')')
}

// isInline reports whether a list has no grandchildren and fits on a line.
func isInline(l *List) bool {
	for _, elem := range l.elements {
		child, ok := elem.(*List)
		if !ok {
			continue
		}
		for _, grandchild := range child.elements {
			if !grandchild.IsLeaf() {
				return false
			}
		}
	}
	return len(l.String()) <= maxInlineWidth
}

func quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
