package matrix

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
)

var annotationPattern = regexp.MustCompile(`^\d+,\d+$`)

// Annotation is the per-key matrix strategy. It is either Manual or Automatic.
type Annotation interface {
	isAnnotation()
	String() string
}

// Manual pins a key to an explicit position.
type Manual struct {
	Row, Col int
}

// Automatic asks the assigner to infer the position from geometry.
type Automatic struct{}

func (Manual) isAnnotation()    {}
func (Automatic) isAnnotation() {}

func (m Manual) String() string  { return fmt.Sprintf("manual(%d,%d)", m.Row, m.Col) }
func (Automatic) String() string { return "automatic" }

// AnnotationOf reads the matrix annotation carried by the key's first legend.
func AnnotationOf(k layout.Key) Annotation {
	label := strings.TrimSpace(k.Label(0))
	if !annotationPattern.MatchString(label) {
		return Automatic{}
	}
	rs, cs, _ := strings.Cut(label, ",")
	row, errR := strconv.Atoi(rs)
	col, errC := strconv.Atoi(cs)
	if errR != nil || errC != nil {
		return Automatic{}
	}
	return Manual{Row: row, Col: col}
}
