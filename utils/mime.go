package utils

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ParsedAddress is one mailbox parsed from an address header.
type ParsedAddress struct {
	Email string
	Name  *string
}

// AttachmentPart is one non-body leaf part of a message.
type AttachmentPart struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	IsInline    bool
	ContentID   *string
	Data        []byte
}

// ParsedMessage is the normalized form of one raw RFC822 message.
type ParsedMessage struct {
	Subject    string
	Date       time.Time
	MessageID  string
	InReplyTo  string
	References string

	From []ParsedAddress
	To   []ParsedAddress
	Cc   []ParsedAddress
	Bcc  []ParsedAddress

	TextBody    *string
	HTMLBody    *string
	Attachments []AttachmentPart
}

// ParseMessage decomposes a raw message into headers, bodies and
// attachment parts. The first text/plain and first text/html leaf parts
// become the bodies; later duplicates of the same type are ignored; every
// other leaf part is recorded as an attachment. Multipart containers only
// recurse, the reader flattens them for us.
func ParseMessage(r io.Reader) (*ParsedMessage, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create message reader: %w", err)
	}

	parsed := &ParsedMessage{
		Subject:    headerValue(mr.Header.Get("Subject")),
		MessageID:  headerValue(mr.Header.Get("Message-Id")),
		InReplyTo:  headerValue(mr.Header.Get("In-Reply-To")),
		References: headerValue(mr.Header.Get("References")),
		From:       parseAddressList(&mr.Header, "From"),
		To:         parseAddressList(&mr.Header, "To"),
		Cc:         parseAddressList(&mr.Header, "Cc"),
		Bcc:        parseAddressList(&mr.Header, "Bcc"),
	}

	if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
		parsed.Date = date.UTC()
	} else {
		parsed.Date = time.Now().UTC()
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read next part: %w", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				if parsed.TextBody == nil {
					body, err := io.ReadAll(p.Body)
					if err != nil {
						return nil, fmt.Errorf("failed to read body: %w", err)
					}
					parsed.TextBody = Pointer(string(body))
				}
			case strings.HasPrefix(contentType, "text/html"):
				if parsed.HTMLBody == nil {
					body, err := io.ReadAll(p.Body)
					if err != nil {
						return nil, fmt.Errorf("failed to read body: %w", err)
					}
					parsed.HTMLBody = Pointer(string(body))
				}
			default:
				// Inline non-text part, e.g. an embedded image for a
				// cid: reference in the HTML body.
				attachment, err := readAttachment(&h.Header, contentType, p.Body, true)
				if err != nil {
					return nil, err
				}
				parsed.Attachments = append(parsed.Attachments, *attachment)
			}
		case *mail.AttachmentHeader:
			contentType, _, _ := h.ContentType()
			attachment, err := readAttachment(&h.Header, contentType, p.Body, false)
			if err != nil {
				return nil, err
			}
			if filename, err := h.Filename(); err == nil && filename != "" {
				attachment.FileName = filename
			}
			parsed.Attachments = append(parsed.Attachments, *attachment)
		}
	}

	return parsed, nil
}

func readAttachment(h *message.Header, contentType string, body io.Reader, isInline bool) (*AttachmentPart, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}

	filename := "attachment"
	if _, params, err := h.ContentDisposition(); err == nil {
		if name, ok := params["filename"]; ok && name != "" {
			filename = name
		}
	}

	attachment := &AttachmentPart{
		FileName:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		IsInline:    isInline,
		Data:        data,
	}
	if cid := TrimAngleBrackets(h.Get("Content-Id")); cid != "" {
		attachment.ContentID = Pointer(cid)
	}

	return attachment, nil
}

func parseAddressList(h *mail.Header, key string) []ParsedAddress {
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		return nil
	}

	parsed := make([]ParsedAddress, 0, len(addrs))
	for _, addr := range addrs {
		entry := ParsedAddress{Email: strings.ToLower(addr.Address)}
		if addr.Name != "" {
			entry.Name = Pointer(addr.Name)
		}
		parsed = append(parsed, entry)
	}
	return parsed
}

func headerValue(raw string) string {
	return strings.TrimSpace(raw)
}

// TrimAngleBrackets strips the <> wrapper off a Message-ID or Content-ID
// style header value.
func TrimAngleBrackets(value string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(value), "<"), ">")
}
