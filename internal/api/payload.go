package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/kingrea/onboard/internal/documents"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Decision is the JSON body of an approval call.
type Decision struct {
	Action       string `json:"action"`
	RejectReason string `json:"rejectReason,omitempty"`
}

// Approve builds an approve decision.
func Approve() Decision {
	return Decision{Action: ActionApprove}
}

// Reject builds a reject decision carrying reason.
func Reject(reason string) Decision {
	return Decision{Action: ActionReject, RejectReason: reason}
}

// Validate rejects unknown actions and reasonless rejections.
func (d Decision) Validate() error {
	switch d.Action {
	case ActionApprove:
		return nil
	case ActionReject:
		if strings.TrimSpace(d.RejectReason) == "" {
			return fmt.Errorf("api: reject requires a reason")
		}
		return nil
	default:
		return fmt.Errorf("api: unknown action %q", d.Action)
	}
}

// Part is one entry of a registration payload. File is nil for scalar parts.
type Part struct {
	Name  string
	Value string
	File  *documents.Attachment
}

// Payload is an ordered multipart registration body.
type Payload struct {
	parts []Part
}

// NewPayload returns an empty payload.
func NewPayload() *Payload {
	return &Payload{}
}

// AddField appends a scalar part.
func (p *Payload) AddField(name, value string) {
	p.parts = append(p.parts, Part{Name: name, Value: value})
}

// AddFile appends a binary part. A nil attachment is sent as an empty scalar.
func (p *Payload) AddFile(name string, att *documents.Attachment) {
	if att == nil {
		p.AddField(name, "")
		return
	}
	p.parts = append(p.parts, Part{Name: name, File: att})
}

// Parts returns the payload entries in insertion order.
func (p *Payload) Parts() []Part {
	out := make([]Part, len(p.parts))
	copy(out, p.parts)
	return out
}

// Encode writes the payload as multipart/form-data.
func (p *Payload) Encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, part := range p.parts {
		if part.File == nil {
			if err := w.WriteField(part.Name, part.Value); err != nil {
				return nil, "", fmt.Errorf("api: write field %s: %w", part.Name, err)
			}
			continue
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(part.Name), escapeQuotes(part.File.Filename)))
		contentType := part.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		fw, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("api: create part %s: %w", part.Name, err)
		}
		if _, err := fw.Write(part.File.Data); err != nil {
			return nil, "", fmt.Errorf("api: write part %s: %w", part.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("api: close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
