package renderer

import (
	"encoding/xml"
	"fmt"
	"sort"
)

// Parameters configure a VectorRenderer. LayerStyles holds the style string
// of each rendered layer and LayerSRS its spatial reference, both keyed by
// layer index; the two maps must share their key sets.
type Parameters struct {
	LayerStyles map[int]string
	LayerSRS    map[int]string
	// ActiveLayer restricts rendering to one layer when it is a key of
	// LayerStyles. -1 renders every configured layer.
	ActiveLayer     int
	AttributeFilter string
}

// NewParameters returns empty parameters with no active layer.
func NewParameters() Parameters {
	return Parameters{
		LayerStyles: make(map[int]string),
		LayerSRS:    make(map[int]string),
		ActiveLayer: -1,
	}
}

// Validate checks that there is something to render and that every styled
// layer has a spatial reference and the other way round.
func (p Parameters) Validate() error {
	if len(p.LayerStyles) == 0 || len(p.LayerSRS) == 0 {
		return ErrNoLayers
	}
	if len(p.LayerStyles) != len(p.LayerSRS) {
		return fmt.Errorf("%w: %d styles for %d spatial references", ErrNoLayers, len(p.LayerStyles), len(p.LayerSRS))
	}
	for i := range p.LayerStyles {
		if _, ok := p.LayerSRS[i]; !ok {
			return fmt.Errorf("%w: layer %d has a style but no spatial reference", ErrNoLayers, i)
		}
	}
	return nil
}

// Layers returns the configured layer indexes in ascending order.
func (p Parameters) Layers() []int {
	return sortedKeys(p.LayerStyles)
}

// clone copies the maps so callers cannot alias renderer state.
func (p Parameters) clone() Parameters {
	out := p
	out.LayerStyles = make(map[int]string, len(p.LayerStyles))
	for k, v := range p.LayerStyles {
		out.LayerStyles[k] = v
	}
	out.LayerSRS = make(map[int]string, len(p.LayerSRS))
	for k, v := range p.LayerSRS {
		out.LayerSRS[k] = v
	}
	return out
}

// Element is the persisted description of one rendered dataset: its URL and
// the renderization node holding the renderer parameters.
type Element struct {
	Name          string
	URL           string
	Renderization *Node
}

// Node is the XML renderization node:
//
//	<renderization>
//	  <styles><layer index="0">VECTORSTYLE[...]</layer></styles>
//	  <srs><layer index="0">EPSG:4326</layer></srs>
//	  <activelayer>0</activelayer>
//	  <filter>pop &gt; 1000</filter>
//	</renderization>
type Node struct {
	XMLName     xml.Name    `xml:"renderization"`
	Styles      []LayerNode `xml:"styles>layer"`
	SRS         []LayerNode `xml:"srs>layer"`
	ActiveLayer *int        `xml:"activelayer,omitempty"`
	Filter      string      `xml:"filter,omitempty"`
}

// LayerNode is one per-layer value of a renderization node.
type LayerNode struct {
	Index int    `xml:"index,attr"`
	Value string `xml:",chardata"`
}

// GetXmlNode builds the renderization node of p. Layers are written in index
// order.
func GetXmlNode(p Parameters) *Node {
	n := &Node{Filter: p.AttributeFilter}
	for _, i := range sortedKeys(p.LayerStyles) {
		n.Styles = append(n.Styles, LayerNode{Index: i, Value: p.LayerStyles[i]})
	}
	for _, i := range sortedKeys(p.LayerSRS) {
		n.SRS = append(n.SRS, LayerNode{Index: i, Value: p.LayerSRS[i]})
	}
	if p.ActiveLayer >= 0 {
		active := p.ActiveLayer
		n.ActiveLayer = &active
	}
	return n
}

// GetParameters reads the parameters stored in n. It does not validate them.
func GetParameters(n *Node) (Parameters, error) {
	if n == nil {
		return Parameters{}, ErrNoNode
	}
	p := NewParameters()
	for _, l := range n.Styles {
		if _, dup := p.LayerStyles[l.Index]; dup {
			return Parameters{}, fmt.Errorf("%w: style of layer %d given twice", ErrBadNode, l.Index)
		}
		p.LayerStyles[l.Index] = l.Value
	}
	for _, l := range n.SRS {
		if _, dup := p.LayerSRS[l.Index]; dup {
			return Parameters{}, fmt.Errorf("%w: srs of layer %d given twice", ErrBadNode, l.Index)
		}
		p.LayerSRS[l.Index] = l.Value
	}
	if n.ActiveLayer != nil {
		p.ActiveLayer = *n.ActiveLayer
	}
	p.AttributeFilter = n.Filter
	return p, nil
}

// Marshal encodes the node as indented XML.
func (n *Node) Marshal() ([]byte, error) {
	return xml.MarshalIndent(n, "", "  ")
}

// UnmarshalNode decodes a renderization node.
func UnmarshalNode(data []byte) (*Node, error) {
	n := &Node{}
	if err := xml.Unmarshal(data, n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadNode, err)
	}
	return n, nil
}

func sortedKeys(m map[int]string) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
