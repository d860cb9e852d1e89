// Package contracts defines the messages exchanged across the frame boundary
// and between the server and the browser frames.
package contracts

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

// MessageType is the discriminant of a cross-frame message.
type MessageType string

const (
	// MessageTypeIframeReady is sent once by the child when it has mounted.
	MessageTypeIframeReady MessageType = "iframe-ready"
	// MessageTypeMarkdownContent carries markdown source to the child.
	MessageTypeMarkdownContent MessageType = "markdown-content"
	// MessageTypeResize reports the child's rendered height.
	MessageTypeResize MessageType = "resize"
	// MessageTypeHeadingVisible reports the heading that became active.
	MessageTypeHeadingVisible MessageType = "heading-visible"
	// MessageTypeScrollToHeading asks the child to scroll a heading into view.
	MessageTypeScrollToHeading MessageType = "scrollToHeading"
	// MessageTypeScrollToHeadingFromIframe asks the parent to scroll to a heading
	// the user clicked inside the child.
	MessageTypeScrollToHeadingFromIframe MessageType = "scrollToHeadingFromIframe"
)

// Known reports whether t is one of the six discriminants.
func (t MessageType) Known() bool {
	switch t {
	case MessageTypeIframeReady,
		MessageTypeMarkdownContent,
		MessageTypeResize,
		MessageTypeHeadingVisible,
		MessageTypeScrollToHeading,
		MessageTypeScrollToHeadingFromIframe:
		return true
	default:
		return false
	}
}

// ErrInvalidMessage is returned by Decode for data that is not a message.
var ErrInvalidMessage = errors.New("invalid message")

// Message is a value of the closed cross-frame message union. Only the types
// in this package implement it.
type Message interface {
	Type() MessageType
	sealed()
}

// IframeReady signals that the child frame is mounted and listening.
type IframeReady struct{}

// MarkdownContent carries the full markdown source of the document.
type MarkdownContent struct {
	Text string
}

// Resize carries the child document's scroll height in CSS pixels.
type Resize struct {
	Height float64
}

// HeadingVisible names the heading that just became active.
type HeadingVisible struct {
	ID string
}

// ScrollToHeading asks the child to scroll the heading into view.
type ScrollToHeading struct {
	ID string
}

// ScrollToHeadingFromIframe asks the parent to scroll to a heading.
type ScrollToHeadingFromIframe struct {
	ID string
}

func (IframeReady) Type() MessageType               { return MessageTypeIframeReady }
func (MarkdownContent) Type() MessageType           { return MessageTypeMarkdownContent }
func (Resize) Type() MessageType                    { return MessageTypeResize }
func (HeadingVisible) Type() MessageType            { return MessageTypeHeadingVisible }
func (ScrollToHeading) Type() MessageType           { return MessageTypeScrollToHeading }
func (ScrollToHeadingFromIframe) Type() MessageType { return MessageTypeScrollToHeadingFromIframe }

func (IframeReady) sealed()               {}
func (MarkdownContent) sealed()           {}
func (Resize) sealed()                    {}
func (HeadingVisible) sealed()            {}
func (ScrollToHeading) sealed()           {}
func (ScrollToHeadingFromIframe) sealed() {}

// envelope is the wire shape of every message.
type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IsValidMessage reports whether data is a JSON object whose type field holds
// one of the known discriminants. The payload is not inspected.
func IsValidMessage(data []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return false
	}
	raw, ok := fields["type"]
	if !ok {
		return false
	}
	var t string
	if err := json.Unmarshal(raw, &t); err != nil {
		return false
	}
	return MessageType(t).Known()
}

// Encode serializes msg into its wire shape.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.Wrap(ErrInvalidMessage, "nil message")
	}

	var payload any
	switch m := msg.(type) {
	case IframeReady:
	case MarkdownContent:
		payload = m.Text
	case Resize:
		if math.IsNaN(m.Height) || math.IsInf(m.Height, 0) {
			return nil, errors.Wrapf(ErrInvalidMessage, "resize height %v", m.Height)
		}
		payload = m.Height
	case HeadingVisible:
		payload = m.ID
	case ScrollToHeading:
		payload = m.ID
	case ScrollToHeadingFromIframe:
		payload = m.ID
	}

	env := envelope{Type: msg.Type()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding %s payload", msg.Type())
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses data into a Message. Besides the discriminant it checks that
// the payload has the shape its type requires.
func Decode(data []byte) (Message, error) {
	if !IsValidMessage(data) {
		return nil, ErrInvalidMessage
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(ErrInvalidMessage, err.Error())
	}

	switch env.Type {
	case MessageTypeIframeReady:
		return IframeReady{}, nil
	case MessageTypeMarkdownContent:
		text, err := stringPayload(env)
		if err != nil {
			return nil, err
		}
		return MarkdownContent{Text: text}, nil
	case MessageTypeResize:
		var height float64
		if len(env.Payload) == 0 || string(env.Payload) == "null" {
			return nil, errors.Wrap(ErrInvalidMessage, "resize without height")
		}
		if err := json.Unmarshal(env.Payload, &height); err != nil {
			return nil, errors.Wrap(ErrInvalidMessage, "resize height is not a number")
		}
		return Resize{Height: height}, nil
	case MessageTypeHeadingVisible:
		id, err := stringPayload(env)
		if err != nil {
			return nil, err
		}
		return HeadingVisible{ID: id}, nil
	case MessageTypeScrollToHeading:
		id, err := stringPayload(env)
		if err != nil {
			return nil, err
		}
		return ScrollToHeading{ID: id}, nil
	case MessageTypeScrollToHeadingFromIframe:
		id, err := stringPayload(env)
		if err != nil {
			return nil, err
		}
		return ScrollToHeadingFromIframe{ID: id}, nil
	}
	return nil, ErrInvalidMessage
}

func stringPayload(env envelope) (string, error) {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return "", errors.Wrapf(ErrInvalidMessage, "%s without payload", env.Type)
	}
	var s string
	if err := json.Unmarshal(env.Payload, &s); err != nil {
		return "", errors.Wrapf(ErrInvalidMessage, "%s payload is not a string", env.Type)
	}
	return s, nil
}
