package kle

import (
	"encoding/json"
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"
)

// rawLayout is the top level of raw data: an optional metadata object
// followed by rows, separated by commas.
type rawLayout struct {
	Items []*rawItem `( @@ ( "," @@ )* )?`
}

type rawItem struct {
	Row  *rawRow    `  @@`
	Meta *rawObject `| @@`
}

// rawRow is one line of keys: legends interleaved with property objects.
// Rows nest one level deep when the whole layout is wrapped in brackets.
type rawRow struct {
	Pos     lexer.Position
	Entries []*rawEntry `"[" ( @@ ( "," @@ )* )? "]"`
}

type rawEntry struct {
	Legend *rawString `  @String`
	Props  *rawObject `| @@`
	Row    *rawRow    `| @@`
}

type rawObject struct {
	Fields []*rawField `"{" ( @@ ( "," @@ )* )? "}"`
}

// rawField is a single property. Example: w:1.5 or "name":"60%"
type rawField struct {
	Key   rawKey    `@( Ident | String ) ":"`
	Value *rawValue `@@`
}

type rawValue struct {
	Number *float64   `  @Number`
	String *rawString `| @String`
	Ident  *string    `| @Ident`
}

// rawString holds a quoted token and decodes it with JSON escape rules.
type rawString string

// Capture implements participle.Capture.
func (s *rawString) Capture(values []string) error {
	v, err := unquote(values[0])
	if err != nil {
		return err
	}
	*s = rawString(v)
	return nil
}

// rawKey accepts both bare and quoted property names.
type rawKey string

// Capture implements participle.Capture.
func (k *rawKey) Capture(values []string) error {
	v := values[0]
	if len(v) > 0 && v[0] == '"' {
		u, err := unquote(v)
		if err != nil {
			return err
		}
		v = u
	}
	*k = rawKey(v)
	return nil
}

func unquote(s string) (string, error) {
	var v string
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v, nil
	}
	return strconv.Unquote(s)
}

// number returns the numeric value of a property, accepting booleans as 0/1.
func (v *rawValue) number() (float64, bool) {
	switch {
	case v == nil:
		return 0, false
	case v.Number != nil:
		return *v.Number, true
	case v.Ident != nil && *v.Ident == "true":
		return 1, true
	case v.Ident != nil && *v.Ident == "false":
		return 0, true
	case v.String != nil:
		f, err := strconv.ParseFloat(string(*v.String), 64)
		return f, err == nil
	}
	return 0, false
}

func (v *rawValue) text() string {
	switch {
	case v == nil:
		return ""
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return strconv.FormatFloat(*v.Number, 'f', -1, 64)
	case v.Ident != nil:
		return *v.Ident
	}
	return ""
}

func (v *rawValue) boolean() bool {
	f, ok := v.number()
	return ok && f != 0
}
