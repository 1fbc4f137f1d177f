package style

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tingold/orb-render/log"
)

// SyntaxError reports a malformed style string.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("style: syntax error at offset %d: %s", e.Pos, e.Msg)
}

func syntaxErr(pos int, format string, args ...interface{}) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

type argKind int

const (
	argNumber argKind = iota
	argString
	argNode
)

type arg struct {
	kind argKind
	pos  int
	num  float64
	str  string
	node *node
}

// node is one NAME[arg,...] element of the grammar.
type node struct {
	name string
	pos  int
	args []arg
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func (s *scanner) node() (*node, error) {
	s.skipSpace()
	start := s.pos
	for s.pos < len(s.src) && isIdentByte(s.src[s.pos]) {
		s.pos++
	}
	if start == s.pos {
		return nil, syntaxErr(start, "expected element name")
	}
	n := &node{name: strings.ToUpper(s.src[start:s.pos]), pos: start}

	s.skipSpace()
	if s.peek() != '[' {
		return nil, syntaxErr(s.pos, "expected '[' after %s", n.name)
	}
	s.pos++

	s.skipSpace()
	if s.peek() == ']' {
		s.pos++
		return n, nil
	}
	for {
		a, err := s.arg()
		if err != nil {
			return nil, err
		}
		n.args = append(n.args, a)

		s.skipSpace()
		switch s.peek() {
		case ',':
			s.pos++
		case ']':
			s.pos++
			return n, nil
		case 0:
			return nil, syntaxErr(s.pos, "unterminated %s", n.name)
		default:
			return nil, syntaxErr(s.pos, "unexpected %q in %s", s.peek(), n.name)
		}
	}
}

func (s *scanner) arg() (arg, error) {
	s.skipSpace()
	c := s.peek()
	switch {
	case c == '"':
		return s.quoted()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return s.number()
	case isIdentByte(c):
		n, err := s.node()
		if err != nil {
			return arg{}, err
		}
		return arg{kind: argNode, pos: n.pos, node: n}, nil
	case c == 0:
		return arg{}, syntaxErr(s.pos, "unexpected end of input")
	}
	return arg{}, syntaxErr(s.pos, "unexpected %q", c)
}

func (s *scanner) quoted() (arg, error) {
	start := s.pos
	s.pos++
	var b strings.Builder
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch c {
		case '\\':
			if s.pos+1 >= len(s.src) {
				return arg{}, syntaxErr(s.pos, "dangling escape")
			}
			b.WriteByte(s.src[s.pos+1])
			s.pos += 2
		case '"':
			s.pos++
			return arg{kind: argString, pos: start, str: b.String()}, nil
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
	return arg{}, syntaxErr(start, "unterminated string")
}

func (s *scanner) number() (arg, error) {
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			s.pos++
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(s.src[start:s.pos], 64)
	if err != nil {
		return arg{}, syntaxErr(start, "invalid number %q", s.src[start:s.pos])
	}
	return arg{kind: argNumber, pos: start, num: v}, nil
}

// Parse decodes a style string such as
//
//	VECTORSTYLE[1,"roads",PEN["suri-pen",1,COLOR[255,0,0,255],WIDTH[2]]]
//
// Sub-styles whose system tag or variant is not recognized are replaced by
// the library default for that sub-style.
func Parse(src string) (*VectorStyle, error) {
	sc := &scanner{src: src}
	root, err := sc.node()
	if err != nil {
		return nil, err
	}
	sc.skipSpace()
	if sc.pos != len(src) {
		return nil, syntaxErr(sc.pos, "trailing characters")
	}
	if root.name != "VECTORSTYLE" {
		return nil, syntaxErr(root.pos, "expected VECTORSTYLE, got %s", root.name)
	}
	if len(root.args) < 2 || root.args[0].kind != argNumber || root.args[1].kind != argString {
		return nil, syntaxErr(root.pos, "VECTORSTYLE needs a version and a quoted name")
	}
	version, err := integer(root.args[0])
	if err != nil {
		return nil, err
	}

	vs := &VectorStyle{Version: version, Name: root.args[1].str}
	seen := make(map[string]bool)
	for _, a := range root.args[2:] {
		if a.kind != argNode {
			return nil, syntaxErr(a.pos, "expected a sub-style element")
		}
		n := a.node
		if seen[n.name] {
			return nil, syntaxErr(n.pos, "duplicate %s", n.name)
		}
		seen[n.name] = true

		switch n.name {
		case "PEN":
			vs.Pen, err = parsePen(n)
		case "BRUSH":
			vs.Brush, err = parseBrush(n)
		case "SYMBOL":
			vs.Symbol, err = parseSymbol(n)
		case "LABEL":
			vs.Label, err = parseLabel(n)
		case "INVERTED":
			var v float64
			v, err = single(n)
			vs.Inverted = v != 0
		default:
			err = syntaxErr(n.pos, "unknown element %s", n.name)
		}
		if err != nil {
			return nil, err
		}
	}
	return vs, nil
}

// MustParse is like Parse but panics on error. It is meant for literals.
func MustParse(src string) *VectorStyle {
	s, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return s
}

// header splits the leading system tag and variant id from the attributes.
func header(n *node) (system string, id int, attrs []*node, err error) {
	if len(n.args) < 2 || n.args[0].kind != argString || n.args[1].kind != argNumber {
		return "", 0, nil, syntaxErr(n.pos, "%s needs a quoted system and a numeric id", n.name)
	}
	id, err = integer(n.args[1])
	if err != nil {
		return "", 0, nil, err
	}
	seen := make(map[string]bool)
	for _, a := range n.args[2:] {
		if a.kind != argNode {
			return "", 0, nil, syntaxErr(a.pos, "expected an attribute in %s", n.name)
		}
		if seen[a.node.name] {
			return "", 0, nil, syntaxErr(a.pos, "duplicate %s in %s", a.node.name, n.name)
		}
		seen[a.node.name] = true
		attrs = append(attrs, a.node)
	}
	return n.args[0].str, id, attrs, nil
}

func integer(a arg) (int, error) {
	if a.kind != argNumber || a.num != math.Trunc(a.num) {
		return 0, syntaxErr(a.pos, "expected an integer")
	}
	return int(a.num), nil
}

func single(n *node) (float64, error) {
	if len(n.args) != 1 || n.args[0].kind != argNumber {
		return 0, syntaxErr(n.pos, "%s takes one number", n.name)
	}
	return n.args[0].num, nil
}

func parseColor(n *node) (color.RGBA, error) {
	if len(n.args) != 3 && len(n.args) != 4 {
		return color.RGBA{}, syntaxErr(n.pos, "%s takes 3 or 4 components", n.name)
	}
	c := [4]uint8{0, 0, 0, 255}
	for i, a := range n.args {
		v, err := integer(a)
		if err != nil {
			return color.RGBA{}, err
		}
		if v < 0 || v > 255 {
			return color.RGBA{}, syntaxErr(a.pos, "color component %d out of range", v)
		}
		c[i] = uint8(v)
	}
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: c[3]}, nil
}

func unknownAttr(parent, n *node) error {
	return syntaxErr(n.pos, "unknown attribute %s in %s", n.name, parent.name)
}

func fallback(kind, system string, id int) {
	log.Warn("unrecognized sub-style, using default",
		zap.String("kind", kind), zap.String("system", system), zap.Int("id", id))
}

func parsePen(n *node) (*Pen, error) {
	system, id, attrs, err := header(n)
	if err != nil {
		return nil, err
	}
	p := DefaultPen()
	for _, a := range attrs {
		switch a.name {
		case "COLOR":
			p.Color, err = parseColor(a)
		case "WIDTH":
			p.Width, err = single(a)
		default:
			err = unknownAttr(n, a)
		}
		if err != nil {
			return nil, err
		}
	}
	if system != PenSystem || id < 0 || id >= int(penCount) {
		fallback("pen", system, id)
		return DefaultPen(), nil
	}
	p.ID = PenID(id)
	return p, nil
}

func parseBrush(n *node) (*Brush, error) {
	system, id, attrs, err := header(n)
	if err != nil {
		return nil, err
	}
	b := DefaultBrush()
	for _, a := range attrs {
		switch a.name {
		case "COLOR":
			b.Color, err = parseColor(a)
		default:
			err = unknownAttr(n, a)
		}
		if err != nil {
			return nil, err
		}
	}
	if system != BrushSystem || id < 0 || id >= int(brushCount) {
		fallback("brush", system, id)
		return DefaultBrush(), nil
	}
	b.ID = BrushID(id)
	return b, nil
}

func parseSymbol(n *node) (*Symbol, error) {
	system, id, attrs, err := header(n)
	if err != nil {
		return nil, err
	}
	s := DefaultSymbol()
	for _, a := range attrs {
		switch a.name {
		case "COLOR":
			s.Color, err = parseColor(a)
		case "SIZE":
			s.Size, err = single(a)
		default:
			err = unknownAttr(n, a)
		}
		if err != nil {
			return nil, err
		}
	}
	if system != SymbolSystem || id < 0 || id >= int(symbolCount) {
		fallback("symbol", system, id)
		return DefaultSymbol(), nil
	}
	s.ID = SymbolID(id)
	return s, nil
}

func parseLabel(n *node) (*Label, error) {
	system, id, attrs, err := header(n)
	if err != nil {
		return nil, err
	}
	l := DefaultLabel()
	for _, a := range attrs {
		switch a.name {
		case "COLOR":
			l.Color, err = parseColor(a)
		case "BACKCOLOR":
			l.BackColor, err = parseColor(a)
		case "SIZE":
			l.Size, err = single(a)
		case "ANGLE":
			l.Angle, err = single(a)
		case "ANCHOR":
			var v float64
			if v, err = single(a); err == nil {
				if v != math.Trunc(v) || v < 0 || v >= float64(anchorCount) {
					err = syntaxErr(a.pos, "anchor %v out of range", v)
				}
				l.Anchor = Anchor(v)
			}
		case "EXPRESSION":
			if len(a.args) != 1 || a.args[0].kind != argString {
				err = syntaxErr(a.pos, "EXPRESSION takes one quoted string")
			} else {
				l.Expression = a.args[0].str
			}
		default:
			err = unknownAttr(n, a)
		}
		if err != nil {
			return nil, err
		}
	}
	if system != LabelSystem || id < 0 || id >= int(labelCount) {
		fallback("label", system, id)
		return DefaultLabel(), nil
	}
	l.ID = LabelID(id)
	return l, nil
}

var quoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoter.Replace(s) + `"`
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func colorString(name string, c color.RGBA) string {
	return fmt.Sprintf("%s[%d,%d,%d,%d]", name, c.R, c.G, c.B, c.A)
}

// String encodes the style back into the bracketed grammar.
func (s *VectorStyle) String() string {
	if s == nil {
		return ""
	}
	version := s.Version
	if version == 0 {
		version = Version
	}

	parts := []string{strconv.Itoa(version), quote(s.Name)}
	if b := s.Brush; b != nil {
		parts = append(parts, fmt.Sprintf("BRUSH[%s,%d,%s]", quote(b.System), b.ID, colorString("COLOR", b.Color)))
	}
	if p := s.Pen; p != nil {
		parts = append(parts, fmt.Sprintf("PEN[%s,%d,%s,WIDTH[%s]]", quote(p.System), p.ID, colorString("COLOR", p.Color), num(p.Width)))
	}
	if sy := s.Symbol; sy != nil {
		parts = append(parts, fmt.Sprintf("SYMBOL[%s,%d,%s,SIZE[%s]]", quote(sy.System), sy.ID, colorString("COLOR", sy.Color), num(sy.Size)))
	}
	if l := s.Label; l != nil {
		parts = append(parts, fmt.Sprintf("LABEL[%s,%d,%s,%s,SIZE[%s],ANGLE[%s],ANCHOR[%d],EXPRESSION[%s]]",
			quote(l.System), l.ID, colorString("COLOR", l.Color), colorString("BACKCOLOR", l.BackColor),
			num(l.Size), num(l.Angle), l.Anchor, quote(l.Expression)))
	}
	if s.Inverted {
		parts = append(parts, "INVERTED[1]")
	}
	return "VECTORSTYLE[" + strings.Join(parts, ",") + "]"
}
