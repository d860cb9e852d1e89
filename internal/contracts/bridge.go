package contracts

// Bridge messages travel between the server and the browser frames over the
// frame sockets. They carry DOM geometry in and DOM commands out; the
// cross-frame protocol itself never leaves the server.
const (
	// BridgeTypeViewport reports the outer page scroll state and frame offset.
	BridgeTypeViewport = "viewport"
	// BridgeTypeTocClick reports a click on a table of contents entry.
	BridgeTypeTocClick = "toc-click"
	// BridgeTypeLayout reports the child document height and heading offsets.
	BridgeTypeLayout = "layout"
	// BridgeTypeHeadingClick reports a click on a heading inside the child.
	BridgeTypeHeadingClick = "heading-click"

	// BridgeTypeOutline replaces the table of contents.
	BridgeTypeOutline = "outline"
	// BridgeTypeActive highlights a table of contents entry.
	BridgeTypeActive = "active"
	// BridgeTypeFrameHeight sets the display height of the frame.
	BridgeTypeFrameHeight = "frame-height"
	// BridgeTypeScrollWindow scrolls the outer page.
	BridgeTypeScrollWindow = "scroll-window"
	// BridgeTypeError shows a load failure in the parent.
	BridgeTypeError = "error"
	// BridgeTypeRender replaces the child document body.
	BridgeTypeRender = "render"
	// BridgeTypeScrollIntoView scrolls a heading of the child into view.
	BridgeTypeScrollIntoView = "scroll-into-view"
)

// IncomingMessage is the minimal envelope used to route browser messages.
type IncomingMessage struct {
	Type string `json:"type"`
}

// ViewportMessage is sent by the parent frame on scroll and resize.
type ViewportMessage struct {
	Type           string  `json:"type"`
	ScrollY        float64 `json:"scrollY"`
	ViewportHeight float64 `json:"viewportHeight"`
	DocumentHeight float64 `json:"documentHeight"`
	FrameTop       float64 `json:"frameTop"`
}

// TocClickMessage is sent by the parent frame when an outline entry is clicked.
type TocClickMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// HeadingOffset is the document-relative top of a heading element.
type HeadingOffset struct {
	ID  string  `json:"id"`
	Top float64 `json:"top"`
}

// LayoutMessage is sent by the child frame after every observed DOM mutation.
type LayoutMessage struct {
	Type         string          `json:"type"`
	ScrollHeight float64         `json:"scrollHeight"`
	Headings     []HeadingOffset `json:"headings"`
}

// HeadingClickMessage is sent by the child frame when a heading is clicked.
type HeadingClickMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// OutlineMessage carries the table of contents to the parent frame.
type OutlineMessage struct {
	Type     string    `json:"type"`
	Headings []Heading `json:"headings"`
	Rev      uint64    `json:"rev"`
}

// ActiveMessage highlights the outline entry with the given id.
type ActiveMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// FrameHeightMessage sets the frame's display height.
type FrameHeightMessage struct {
	Type   string  `json:"type"`
	Height float64 `json:"height"`
}

// ScrollWindowMessage scrolls the parent page to an absolute offset.
type ScrollWindowMessage struct {
	Type   string  `json:"type"`
	Top    float64 `json:"top"`
	Smooth bool    `json:"smooth"`
}

// ErrorMessage puts the parent view into its error state.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RenderMessage carries rendered HTML to the child frame.
type RenderMessage struct {
	Type string `json:"type"`
	HTML string `json:"html"`
	Rev  uint64 `json:"rev"`
}

// ScrollIntoViewMessage scrolls a heading of the child into view.
type ScrollIntoViewMessage struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Smooth bool   `json:"smooth"`
	Block  string `json:"block"`
}
