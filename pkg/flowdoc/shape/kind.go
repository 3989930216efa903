package shape

import (
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/ident"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/registry"
)

// Shape types known to the engine.
const (
	TypeForm     = "form"
	TypeDiv      = "htmlDiv"
	TypeLabel    = "htmlLabel"
	TypeInput    = "htmlInput"
	TypeTextArea = "htmlTextArea"
	TypeSelect   = "htmlSelect"
	TypeCheckbox = "htmlCheckbox"
	TypeRadio    = "htmlRadio"
	TypeButton   = "htmlButton"
	TypeImage    = "htmlImage"
	TypeScript   = "htmlScript"

	TypeStart     = "startNodeStart"
	TypeEnd       = "endNodeEnd"
	TypeLLM       = "llmNodeState"
	TypeTool      = "toolInvokeNodeState"
	TypeCondition = "conditionNodeCondition"
)

// Kind describes how to build a shape of one type.
type Kind struct {
	Type          string
	Width, Height float64
	// Container marks kinds that may own other shapes.
	Container bool
	// Fixed kinds are created non-deletable.
	Fixed bool
	// Init fills type-specific defaults such as parameter trees.
	Init func(*Shape) error
}

// New builds a shape of this kind at (x, y). An empty id gets a fresh one.
func (k Kind) New(id string, x, y float64) (*Shape, error) {
	if id == "" {
		id = ident.New()
	}
	s := &Shape{
		ID:        id,
		Type:      k.Type,
		X:         x,
		Y:         y,
		Width:     k.Width,
		Height:    k.Height,
		Deletable: !k.Fixed,
	}
	if k.Init != nil {
		if err := k.Init(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Kinds is the type tag → Kind table.
type Kinds = registry.Registry[string, Kind]

// NewKinds returns an unfrozen table holding the built-in kinds.
func NewKinds() *Kinds {
	k := registry.New[string, Kind]("shape kinds")
	for _, kind := range builtins {
		k.MustRegister(kind.Type, kind)
	}
	return k
}

var builtins = []Kind{
	{Type: TypeForm, Width: 800, Height: 600, Container: true, Fixed: true},
	{Type: TypeDiv, Width: 400, Height: 200, Container: true},
	{Type: TypeLabel, Width: 200, Height: 30},
	{Type: TypeInput, Width: 300, Height: 40},
	{Type: TypeTextArea, Width: 300, Height: 120},
	{Type: TypeSelect, Width: 300, Height: 40},
	{Type: TypeCheckbox, Width: 200, Height: 30},
	{Type: TypeRadio, Width: 200, Height: 30},
	{Type: TypeButton, Width: 120, Height: 40},
	{Type: TypeImage, Width: 200, Height: 200},
	{Type: TypeScript, Width: 0, Height: 0},
	{Type: TypeStart, Width: 360, Height: 120, Fixed: true},
	{Type: TypeEnd, Width: 360, Height: 120, Fixed: true},
	{Type: TypeLLM, Width: 360, Height: 200},
	{Type: TypeTool, Width: 360, Height: 160},
	{Type: TypeCondition, Width: 360, Height: 160},
}
