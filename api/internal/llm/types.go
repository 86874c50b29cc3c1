package llm

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// Part is one piece of message content. Image parts carry base64 data,
// never a remote URL.
type Part struct {
	Type     PartType
	Text     string
	MIMEType string
	Data     string // base64
}

func Text(s string) Part { return Part{Type: PartText, Text: s} }

func ImageBase64(mime, b64 string) Part {
	return Part{Type: PartImage, MIMEType: mime, Data: b64}
}

type Message struct {
	Role  Role
	Parts []Part
}

func NewMessage(role Role, parts ...Part) Message {
	return Message{Role: role, Parts: parts}
}

// TextOnly reports whether every part of the message is text.
func (m Message) TextOnly() bool {
	for _, p := range m.Parts {
		if p.Type != PartText {
			return false
		}
	}
	return true
}

// JoinedText concatenates the text parts of the message.
func (m Message) JoinedText() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type != PartText {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// Request is one call to a remote model. Temperature is nil when the
// provider default applies.
type Request struct {
	Model       string
	Messages    []Message
	Temperature *float32
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return &Error{Kind: ErrInvalidInput, Err: fmt.Errorf("model is empty")}
	}
	if len(r.Messages) == 0 {
		return &Error{Kind: ErrInvalidInput, Err: fmt.Errorf("no messages")}
	}
	for i, m := range r.Messages {
		if !m.Role.Valid() {
			return &Error{Kind: ErrInvalidInput, Err: fmt.Errorf("message %d: unknown role %q", i, m.Role)}
		}
		if len(m.Parts) == 0 {
			return &Error{Kind: ErrInvalidInput, Err: fmt.Errorf("message %d: no content", i)}
		}
		for j, p := range m.Parts {
			if p.Type != PartText && p.Type != PartImage {
				return &Error{Kind: ErrInvalidInput, Err: fmt.Errorf("message %d part %d: unknown type %q", i, j, p.Type)}
			}
		}
	}
	return nil
}

// SplitSystem separates system messages from the conversation turns.
func (r Request) SplitSystem() (system []string, turns []Message) {
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.JoinedText())
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}

func Float32(v float32) *float32 { return &v }
