package app

import (
	"go-live-docs/internal/contracts"
	"go-live-docs/internal/frame"
	"go-live-docs/internal/tracker"
	httptransport "go-live-docs/internal/transport/http"
)

// geometry is the last layout reported by the two frames of a session.
type geometry struct {
	viewport     contracts.ViewportMessage
	scrollHeight float64
	headings     []contracts.HeadingOffset
}

// parentDOM drives the parent page through its socket and remembers what it
// showed so a reconnecting page can be restored.
type parentDOM struct {
	geo  *geometry
	peer httptransport.Peer

	outline     []contracts.Heading
	outlineRev  uint64
	active      string
	frameHeight float64
	loadErr     string
}

func (d *parentDOM) send(v any) {
	if d.peer != nil {
		d.peer.Send(v)
	}
}

func (d *parentDOM) attach(peer httptransport.Peer) {
	d.peer = peer
	if d.outlineRev > 0 {
		d.send(contracts.OutlineMessage{Type: contracts.BridgeTypeOutline, Headings: d.outline, Rev: d.outlineRev})
	}
	if d.active != "" {
		d.send(contracts.ActiveMessage{Type: contracts.BridgeTypeActive, ID: d.active})
	}
	if d.frameHeight > 0 {
		d.send(contracts.FrameHeightMessage{Type: contracts.BridgeTypeFrameHeight, Height: d.frameHeight})
	}
	if d.loadErr != "" {
		d.send(contracts.ErrorMessage{Type: contracts.BridgeTypeError, Message: d.loadErr})
	}
}

func (d *parentDOM) detach(peer httptransport.Peer) {
	if d.peer == peer {
		d.peer = nil
	}
}

func (d *parentDOM) SetOutline(outline []contracts.Heading) {
	d.outline = outline
	d.outlineRev++
	d.loadErr = ""
	d.send(contracts.OutlineMessage{Type: contracts.BridgeTypeOutline, Headings: outline, Rev: d.outlineRev})
}

func (d *parentDOM) SetActive(id string) {
	d.active = id
	d.send(contracts.ActiveMessage{Type: contracts.BridgeTypeActive, ID: id})
}

func (d *parentDOM) SetFrameHeight(height float64) {
	d.frameHeight = height
	d.send(contracts.FrameHeightMessage{Type: contracts.BridgeTypeFrameHeight, Height: height})
}

func (d *parentDOM) FrameOffsetTop() float64 {
	return d.geo.viewport.FrameTop
}

func (d *parentDOM) ScrollWindowTo(top float64, smooth bool) {
	d.send(contracts.ScrollWindowMessage{Type: contracts.BridgeTypeScrollWindow, Top: top, Smooth: smooth})
}

func (d *parentDOM) ShowError(err error) {
	d.loadErr = err.Error()
	d.send(contracts.ErrorMessage{Type: contracts.BridgeTypeError, Message: d.loadErr})
}

// childDOM drives the embedded document through its socket.
type childDOM struct {
	geo  *geometry
	peer httptransport.Peer
	rev  uint64
}

func (d *childDOM) Commit(html string) {
	d.rev++
	// The old offsets describe the previous document.
	d.geo.headings = nil
	d.peer.Send(contracts.RenderMessage{Type: contracts.BridgeTypeRender, HTML: html, Rev: d.rev})
}

func (d *childDOM) ScrollIntoView(id string) {
	d.peer.Send(contracts.ScrollIntoViewMessage{
		Type:   contracts.BridgeTypeScrollIntoView,
		ID:     id,
		Smooth: true,
		Block:  "start",
	})
}

func (d *childDOM) ScrollHeight() float64 {
	return d.geo.scrollHeight
}

func (d *childDOM) Layout() tracker.Layout {
	v := d.geo.viewport
	return tracker.Layout{
		ScrollY:        v.ScrollY,
		ViewportHeight: v.ViewportHeight,
		DocumentHeight: v.DocumentHeight,
		FrameTop:       v.FrameTop,
		Headings:       d.geo.headings,
	}
}

// sameOriginAccess reads heading offsets straight from the child's reported
// layout, which a real parent could only do for a same-origin frame.
type sameOriginAccess struct {
	parent, child frame.Window
	geo           *geometry
}

func (a *sameOriginAccess) ElementOffsetTop(id string) (float64, bool, error) {
	if a.parent.Origin() != a.child.Origin() {
		return 0, false, frame.ErrCrossOrigin
	}
	for _, h := range a.geo.headings {
		if h.ID == id {
			return h.Top, true, nil
		}
	}
	return 0, false, nil
}
