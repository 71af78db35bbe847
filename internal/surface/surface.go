// Package surface defines the editable regions the rule engine mutates.
//
// A Surface is a tagged variant decided once when the page is located:
// either a value-bearing field whose whole text is read and written at once,
// or a structured container whose text lives in leaves between markup.
package surface

// Kind tags a Surface
type Kind int

const (
	KindValueField Kind = iota + 1
	KindContainer
)

func (k Kind) String() string {
	switch k {
	case KindValueField:
		return "value_field"
	case KindContainer:
		return "container"
	default:
		return "unknown"
	}
}

// Event types dispatched on a changed surface
const (
	EventInput  = "input"
	EventChange = "change"
)

// ValueField is an input-like surface with a settable value
type ValueField interface {
	Text() string
	SetText(string)
	// NotifyChanged dispatches an input then a change notification
	NotifyChanged()
}

// TextLeaf is a text-bearing leaf of a structured container
type TextLeaf interface {
	Text() string
	SetText(string)
}

// Container is a structured (rich text) editable region
type Container interface {
	// Leaves returns text leaves in document order, depth first
	Leaves() []TextLeaf
	NotifyChanged()
}

// Surface is one editable region. Exactly one of Field or Container is set,
// matching Kind.
type Surface struct {
	Kind      Kind
	Field     ValueField
	Container Container
}

// FieldSurface wraps a value field
func FieldSurface(f ValueField) Surface {
	return Surface{Kind: KindValueField, Field: f}
}

// ContainerSurface wraps a structured container
func ContainerSurface(c Container) Surface {
	return Surface{Kind: KindContainer, Container: c}
}

// Locator discovers the editable surfaces of a page in document order
type Locator interface {
	Locate() []Surface
}
