package style

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const roads = `VECTORSTYLE[3,"roads",
	PEN["suri-pen",3,COLOR[255,0,0,200],WIDTH[2.5]],
	LABEL["suri-label",1,COLOR[0,0,0,255],BACKCOLOR[255,255,255,0],SIZE[12],ANGLE[30],ANCHOR[4],EXPRESSION["{name}"]]]`

func TestParse(t *testing.T) {
	s, err := Parse(roads)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Version)
	assert.Equal(t, "roads", s.Name)
	require.NotNil(t, s.Pen)
	assert.Equal(t, PenLongDash, s.Pen.ID)
	assert.Equal(t, color.RGBA{R: 255, A: 200}, s.Pen.Color)
	assert.Equal(t, 2.5, s.Pen.Width)
	assert.Nil(t, s.Brush)
	assert.Nil(t, s.Symbol)

	require.NotNil(t, s.Label)
	assert.Equal(t, LabelDefault, s.Label.ID)
	assert.Equal(t, AnchorCenter, s.Label.Anchor)
	assert.Equal(t, 30.0, s.Label.Angle)
	assert.Equal(t, "{name}", s.Label.Expression)
	assert.False(t, s.Inverted)
}

func TestParseOrderIndependent(t *testing.T) {
	a, err := Parse(`VECTORSTYLE[1,"x",BRUSH["suri-brush",2,COLOR[1,2,3]],PEN["suri-pen",1,WIDTH[1],COLOR[4,5,6,7]]]`)
	require.NoError(t, err)
	b, err := Parse(`VECTORSTYLE[1,"x",PEN["suri-pen",1,COLOR[4,5,6,7],WIDTH[1]],BRUSH["suri-brush",2,COLOR[1,2,3,255]]]`)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStringRoundTrip(t *testing.T) {
	styles := []*VectorStyle{
		DefaultPointStyle(),
		DefaultLineStyle(),
		DefaultPolygonStyle(),
		RealPointStyle(),
		PhantomPointStyle(),
		SelectedPointStyle(),
		{
			Version:  2,
			Name:     `quoted "name" \ slash`,
			Brush:    &Brush{System: BrushSystem, ID: BrushCrossHatch, Color: color.RGBA{R: 10, G: 20, B: 30, A: 40}},
			Label:    &Label{System: LabelSystem, ID: LabelDefault, Size: 8, Angle: -45, Anchor: AnchorLowerRight, Expression: "Lit"},
			Inverted: true,
		},
	}
	for _, s := range styles {
		t.Run(s.Name, func(t *testing.T) {
			got, err := Parse(s.String())
			require.NoError(t, err)
			assert.Equal(t, s, got)
		})
	}
}

func TestUnknownSystemFallsBack(t *testing.T) {
	s, err := Parse(`VECTORSTYLE[1,"x",PEN["acme-pen",1,COLOR[255,0,0,255],WIDTH[7]]]`)
	require.NoError(t, err)
	assert.Equal(t, DefaultPen(), s.Pen)
	assert.Equal(t, PenSolid, s.Pen.ID)

	s, err = Parse(`VECTORSTYLE[1,"x",BRUSH["suri-brush",99,COLOR[255,0,0,255]]]`)
	require.NoError(t, err)
	assert.Equal(t, DefaultBrush(), s.Brush)
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"wrong root", `STYLE[1,"x"]`},
		{"missing name", `VECTORSTYLE[1]`},
		{"unterminated", `VECTORSTYLE[1,"x",PEN["suri-pen",1]`},
		{"unterminated string", `VECTORSTYLE[1,"x]`},
		{"duplicate pen", `VECTORSTYLE[1,"x",PEN["suri-pen",1],PEN["suri-pen",1]]`},
		{"unknown element", `VECTORSTYLE[1,"x",FOO[1]]`},
		{"bad color", `VECTORSTYLE[1,"x",PEN["suri-pen",1,COLOR[300,0,0]]]`},
		{"fractional id", `VECTORSTYLE[1,"x",PEN["suri-pen",1.5]]`},
		{"bad anchor", `VECTORSTYLE[1,"x",LABEL["suri-label",1,ANCHOR[9]]]`},
		{"trailing", `VECTORSTYLE[1,"x"] extra`},
		{"unknown attribute", `VECTORSTYLE[1,"x",PEN["suri-pen",1,SIZE[3]]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			var syn *SyntaxError
			assert.ErrorAs(t, err, &syn)
		})
	}
}

func TestInverted(t *testing.T) {
	s, err := Parse(`VECTORSTYLE[1,"mask",BRUSH["suri-brush",1,COLOR[0,0,0,255]],INVERTED[1]]`)
	require.NoError(t, err)
	assert.True(t, s.Inverted)
}

func TestClone(t *testing.T) {
	s := DefaultPolygonStyle()
	c := s.Clone()
	require.Equal(t, s, c)

	c.Pen.Width = 9
	c.Brush.ID = BrushTransparent
	assert.Equal(t, 1.0, s.Pen.Width)
	assert.Equal(t, BrushSolid, s.Brush.ID)

	var nilStyle *VectorStyle
	assert.Nil(t, nilStyle.Clone())
}

func TestMerge(t *testing.T) {
	point := &VectorStyle{Name: "point", Symbol: DefaultSymbol()}
	parent := &VectorStyle{Name: "parent", Pen: &Pen{System: PenSystem, ID: PenDot, Width: 3}}

	m := Merge(nil, point, parent, DefaultPolygonStyle())
	require.NotNil(t, m)
	assert.Equal(t, "point", m.Name)
	assert.Equal(t, PenDot, m.Pen.ID)
	assert.Equal(t, DefaultBrush(), m.Brush)

	m.Symbol.Size = 42
	assert.Equal(t, 4.0, point.Symbol.Size)

	assert.Nil(t, Merge(nil, nil))
}

func TestAnchorOffsets(t *testing.T) {
	tests := []struct {
		a      Anchor
		ax, ay float64
	}{
		{AnchorUpperLeft, 0, 0},
		{AnchorUpperCenter, 0.5, 0},
		{AnchorUpperRight, 1, 0},
		{AnchorMiddleLeft, 0, 0.5},
		{AnchorCenter, 0.5, 0.5},
		{AnchorMiddleRight, 1, 0.5},
		{AnchorLowerLeft, 0, 1},
		{AnchorLowerCenter, 0.5, 1},
		{AnchorLowerRight, 1, 1},
	}
	for _, tt := range tests {
		ax, ay := tt.a.Offsets()
		assert.Equal(t, tt.ax, ax)
		assert.Equal(t, tt.ay, ay)
	}
}
