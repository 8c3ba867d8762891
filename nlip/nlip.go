// Package nlip implements the NLIP message envelope used by all demo servers
// in this repository. A Message carries a format/subformat tag, free-form
// content and an optional list of submessages. The envelope is treated as
// opaque transport: nothing in this package interprets the content beyond
// extracting text and the session correlator token.
package nlip

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format identifies the content type of a message or submessage.
type Format string

const (
	// FormatText carries natural language content.
	FormatText Format = "text"
	// FormatToken carries opaque control tokens such as session correlators.
	FormatToken Format = "token"
	// FormatStructured carries machine-readable structured content.
	FormatStructured Format = "structured"
	// FormatBinary carries base64-encoded binary content.
	FormatBinary Format = "binary"
)

// SubformatCorrelator marks a token submessage holding the session correlator.
const SubformatCorrelator = "correlator"

// SubMessage is an auxiliary payload attached to a Message.
type SubMessage struct {
	Format    Format `json:"format"`
	Subformat string `json:"subformat"`
	Content   string `json:"content"`
}

// Message is the NLIP request/response envelope.
type Message struct {
	Control     bool         `json:"control"`
	Format      Format       `json:"format"`
	Subformat   string       `json:"subformat"`
	Content     string       `json:"content"`
	Submessages []SubMessage `json:"submessages,omitempty"`
}

// NewText creates a plain English text message.
func NewText(content string) *Message {
	return &Message{
		Format:    FormatText,
		Subformat: "english",
		Content:   content,
	}
}

// ExtractText returns the concatenated text content of the message and all
// text submessages, separated by newlines.
func (m *Message) ExtractText() string {
	parts := make([]string, 0, 1+len(m.Submessages))
	if m.Format == FormatText {
		parts = append(parts, m.Content)
	}
	for _, sub := range m.Submessages {
		if sub.Format == FormatText {
			parts = append(parts, sub.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// Correlator returns the session correlator token if present.
func (m *Message) Correlator() (string, bool) {
	for _, sub := range m.Submessages {
		if sub.Format == FormatToken && sub.Subformat == SubformatCorrelator {
			return sub.Content, true
		}
	}
	return "", false
}

// WithCorrelator returns the message with a correlator token submessage
// attached, replacing any existing correlator.
func (m *Message) WithCorrelator(id string) *Message {
	subs := make([]SubMessage, 0, len(m.Submessages)+1)
	for _, sub := range m.Submessages {
		if sub.Format == FormatToken && sub.Subformat == SubformatCorrelator {
			continue
		}
		subs = append(subs, sub)
	}
	subs = append(subs, SubMessage{
		Format:    FormatToken,
		Subformat: SubformatCorrelator,
		Content:   id,
	})
	m.Submessages = subs
	return m
}

// Decode parses a JSON-encoded message.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode nlip message: %w", err)
	}
	return &msg, nil
}

// Encode serializes the message to JSON.
func (m *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode nlip message: %w", err)
	}
	return data, nil
}
