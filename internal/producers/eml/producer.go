// Package eml turns raw RFC 5322 email messages into catalog
// envelopes. It is the reference producer: anything a collector must
// fill in on an envelope, this package demonstrates.
package eml

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"time"

	"github.com/haven-labs/haven/internal/core/domain"
)

// SourceType is stamped on every envelope this producer emits.
const SourceType = "email"

// Envelope parses a raw email and builds the ingest envelope. The
// idempotency key derives from the message identity and content, so
// re-submitting the same file is a safe retry.
func Envelope(raw []byte) (*domain.IngestRequest, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing message: %v", domain.ErrInvalidInput, err)
	}

	externalID := messageID(msg)
	if externalID == "" {
		// No Message-ID: fall back to content identity.
		externalID = domain.HashBytes(raw)
	}

	body, attachments := extractParts(msg)

	req := &domain.IngestRequest{
		SourceType:       SourceType,
		ExternalID:       externalID,
		Text:             buildText(msg, body),
		ContentTimestamp: sentAt(msg),
		TimestampType:    domain.TimestampSent,
		People:           participants(msg),
		Thread:           threadRef(msg),
		Attachments:      attachments,
		Metadata: map[string]any{
			"subject": decodeHeader(msg.Header.Get("Subject")),
		},
		IdempotencyKey: domain.HashText(externalID + "\n" + domain.HashBytes(raw)),
	}
	return req, nil
}

// messageID returns the Message-ID without angle brackets.
func messageID(msg *mail.Message) string {
	id := strings.TrimSpace(msg.Header.Get("Message-ID"))
	return strings.Trim(id, "<>")
}

func sentAt(msg *mail.Message) time.Time {
	if t, err := msg.Header.Date(); err == nil {
		return t
	}
	return time.Now().UTC()
}

// participants maps address headers onto the envelope people list.
func participants(msg *mail.Message) []domain.Person {
	var people []domain.Person
	for _, header := range []struct {
		name string
		role string
	}{
		{"From", "from"},
		{"To", "to"},
		{"Cc", "cc"},
	} {
		addrs, err := msg.Header.AddressList(header.name)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			people = append(people, domain.Person{
				Identifier:     strings.ToLower(addr.Address),
				IdentifierType: "email",
				Role:           header.role,
			})
		}
	}
	return people
}

// threadRef derives the thread identity from the reply chain: the
// first message in References is the thread root, so every reply in a
// conversation resolves to the same thread.
func threadRef(msg *mail.Message) *domain.ThreadRef {
	refs := strings.Fields(msg.Header.Get("References"))
	root := ""
	if len(refs) > 0 {
		root = strings.Trim(refs[0], "<>")
	} else if irt := strings.TrimSpace(msg.Header.Get("In-Reply-To")); irt != "" {
		root = strings.Trim(irt, "<>")
	} else {
		root = messageID(msg)
	}
	if root == "" {
		return nil
	}
	return &domain.ThreadRef{
		ExternalID: root,
		Title:      decodeHeader(msg.Header.Get("Subject")),
	}
}

// buildText assembles the searchable text: key headers then body.
func buildText(msg *mail.Message, body string) string {
	var b strings.Builder
	for _, header := range []string{"From", "To", "Subject"} {
		if v := decodeHeader(msg.Header.Get(header)); v != "" {
			b.WriteString(header)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(body)
	return strings.TrimSpace(b.String())
}

// decodeHeader decodes RFC 2047 encoded headers.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// extractParts walks the MIME structure, returning the preferred text
// body and any attachment parts.
func extractParts(msg *mail.Message) (string, []domain.Attachment) {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		body, _ := io.ReadAll(msg.Body)
		return string(body), nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return walkMultipart(msg.Body, params["boundary"])
	}

	body, _ := io.ReadAll(msg.Body)
	if mediaType == "text/html" {
		return stripHTMLTags(string(body)), nil
	}
	return string(body), nil
}

func walkMultipart(r io.Reader, boundary string) (string, []domain.Attachment) {
	if boundary == "" {
		return "", nil
	}

	mr := multipart.NewReader(r, boundary)
	var textParts []string
	var htmlParts []string
	var attachments []domain.Attachment

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		mediaType, params, parseErr := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if parseErr != nil {
			mediaType = "application/octet-stream"
		}

		content, readErr := io.ReadAll(part)
		part.Close()
		if readErr != nil {
			continue
		}

		filename := part.FileName()
		switch {
		case filename != "":
			attachments = append(attachments, domain.Attachment{
				Filename: filename,
				Data:     content,
				MimeType: mediaType,
				Role:     domain.FileRoleAttachment,
			})
		case mediaType == "text/plain":
			textParts = append(textParts, string(content))
		case mediaType == "text/html":
			htmlParts = append(htmlParts, stripHTMLTags(string(content)))
		case strings.HasPrefix(mediaType, "multipart/"):
			nested, nestedAttachments := walkMultipart(bytes.NewReader(content), params["boundary"])
			if nested != "" {
				textParts = append(textParts, nested)
			}
			attachments = append(attachments, nestedAttachments...)
		}
	}

	// Prefer plain text over HTML when both alternatives exist.
	body := strings.Join(textParts, "\n")
	if body == "" {
		body = strings.Join(htmlParts, "\n")
	}
	return body, attachments
}

// stripHTMLTags removes HTML tags for basic text extraction.
func stripHTMLTags(html string) string {
	var result strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}

	lines := strings.Split(result.String(), "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
