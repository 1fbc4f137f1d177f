// Package style holds the declarative styles used to paint geometries and
// their bracketed string encoding.
package style

import (
	"image/color"
)

const (
	PenSystem    = "suri-pen"
	BrushSystem  = "suri-brush"
	SymbolSystem = "suri-symbol"
	LabelSystem  = "suri-label"

	// Version written by String when none is set.
	Version = 1
)

type PenID int

const (
	PenTransparent PenID = iota
	PenSolid
	PenDot
	PenLongDash
	PenShortDash
	PenDotDash
	penCount
)

type BrushID int

const (
	BrushTransparent BrushID = iota
	BrushSolid
	BrushBDiagonalHatch
	BrushCrossDiagHatch
	BrushFDiagonalHatch
	BrushCrossHatch
	BrushHorizontalHatch
	BrushVerticalHatch
	brushCount
)

type SymbolID int

const (
	SymbolNone SymbolID = iota
	SymbolCircle
	SymbolSquare
	SymbolTriangle
	SymbolCross
	symbolCount
)

type LabelID int

const (
	LabelNone LabelID = iota
	LabelDefault
	labelCount
)

// Anchor selects which point of the text box is placed on the label position.
type Anchor int

const (
	AnchorUpperLeft Anchor = iota
	AnchorUpperCenter
	AnchorUpperRight
	AnchorMiddleLeft
	AnchorCenter
	AnchorMiddleRight
	AnchorLowerLeft
	AnchorLowerCenter
	AnchorLowerRight
	anchorCount
)

// Offsets returns the anchor position as fractions of the text box width
// and height, each one of 0, 0.5 or 1.
func (a Anchor) Offsets() (ax, ay float64) {
	if a < 0 || a >= anchorCount {
		a = AnchorUpperLeft
	}
	return float64(a%3) * 0.5, float64(a/3) * 0.5
}

type Pen struct {
	System string
	ID     PenID
	Color  color.RGBA
	Width  float64
}

type Brush struct {
	System string
	ID     BrushID
	Color  color.RGBA
}

type Symbol struct {
	System string
	ID     SymbolID
	Color  color.RGBA
	Size   float64
}

// Label describes the text drawn next to a geometry. Expression is either a
// literal or a "{field}" reference to an attribute. Angle is in degrees,
// counter-clockwise.
type Label struct {
	System     string
	ID         LabelID
	Color      color.RGBA
	BackColor  color.RGBA
	Size       float64
	Angle      float64
	Anchor     Anchor
	Expression string
}

// VectorStyle groups the optional sub-styles that paint one geometry class.
type VectorStyle struct {
	Version  int
	Name     string
	Pen      *Pen
	Brush    *Brush
	Symbol   *Symbol
	Label    *Label
	Inverted bool
}

// Clone returns a deep copy of the style. Cloning nil returns nil.
func (s *VectorStyle) Clone() *VectorStyle {
	if s == nil {
		return nil
	}
	out := *s
	if s.Pen != nil {
		p := *s.Pen
		out.Pen = &p
	}
	if s.Brush != nil {
		b := *s.Brush
		out.Brush = &b
	}
	if s.Symbol != nil {
		sy := *s.Symbol
		out.Symbol = &sy
	}
	if s.Label != nil {
		l := *s.Label
		out.Label = &l
	}
	return &out
}

// Merge returns a clone of the first non-nil style with its missing
// sub-styles taken from the following ones, in order. It returns nil when
// every style is nil.
func Merge(styles ...*VectorStyle) *VectorStyle {
	var out *VectorStyle
	for _, s := range styles {
		if s == nil {
			continue
		}
		if out == nil {
			out = s.Clone()
			continue
		}
		fill := s.Clone()
		if out.Pen == nil {
			out.Pen = fill.Pen
		}
		if out.Brush == nil {
			out.Brush = fill.Brush
		}
		if out.Symbol == nil {
			out.Symbol = fill.Symbol
		}
		if out.Label == nil {
			out.Label = fill.Label
		}
	}
	return out
}

var (
	black       = color.RGBA{A: 255}
	transparent = color.RGBA{}
)

func DefaultPen() *Pen {
	return &Pen{System: PenSystem, ID: PenSolid, Color: black, Width: 1}
}

func DefaultBrush() *Brush {
	return &Brush{System: BrushSystem, ID: BrushSolid, Color: color.RGBA{R: 200, G: 200, B: 200, A: 255}}
}

func DefaultSymbol() *Symbol {
	return &Symbol{System: SymbolSystem, ID: SymbolCircle, Color: black, Size: 4}
}

func DefaultLabel() *Label {
	return &Label{System: LabelSystem, ID: LabelNone, Color: black, BackColor: transparent, Size: 10}
}

func DefaultPointStyle() *VectorStyle {
	return &VectorStyle{Version: Version, Name: "default point", Symbol: DefaultSymbol(), Label: DefaultLabel()}
}

func DefaultLineStyle() *VectorStyle {
	return &VectorStyle{Version: Version, Name: "default line", Pen: DefaultPen(), Label: DefaultLabel()}
}

func DefaultPolygonStyle() *VectorStyle {
	return &VectorStyle{Version: Version, Name: "default polygon", Pen: DefaultPen(), Brush: DefaultBrush(), Label: DefaultLabel()}
}

// RealPointStyle marks authored vertices while editing.
func RealPointStyle() *VectorStyle {
	return &VectorStyle{
		Version: Version,
		Name:    "real point",
		Pen:     &Pen{System: PenSystem, ID: PenSolid, Color: color.RGBA{R: 0, G: 0, B: 160, A: 255}, Width: 2},
		Brush:   &Brush{System: BrushSystem, ID: BrushSolid, Color: color.RGBA{R: 255, G: 255, B: 0, A: 128}},
		Symbol:  &Symbol{System: SymbolSystem, ID: SymbolCircle, Color: color.RGBA{R: 0, G: 0, B: 255, A: 255}, Size: 6},
	}
}

// PhantomPointStyle marks insertion handles.
func PhantomPointStyle() *VectorStyle {
	return &VectorStyle{
		Version: Version,
		Name:    "phantom point",
		Symbol:  &Symbol{System: SymbolSystem, ID: SymbolCircle, Color: color.RGBA{R: 128, G: 128, B: 128, A: 160}, Size: 4},
	}
}

// SelectedPointStyle marks the vertex being edited.
func SelectedPointStyle() *VectorStyle {
	return &VectorStyle{
		Version: Version,
		Name:    "selected point",
		Symbol:  &Symbol{System: SymbolSystem, ID: SymbolSquare, Color: color.RGBA{R: 255, A: 255}, Size: 8},
	}
}
