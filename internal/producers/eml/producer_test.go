package eml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-labs/haven/internal/core/domain"
)

const plainMessage = `From: Alice <alice@example.com>
To: bob@example.com
Cc: carol@example.com
Subject: Quarterly budget
Message-ID: <msg-001@example.com>
Date: Mon, 02 Mar 2026 09:00:00 +0000
Content-Type: text/plain

Please review the attached budget before Friday.
`

func TestEnvelope_PlainText(t *testing.T) {
	req, err := Envelope([]byte(plainMessage))
	require.NoError(t, err)

	assert.Equal(t, "email", req.SourceType)
	assert.Equal(t, "msg-001@example.com", req.ExternalID)
	assert.Equal(t, domain.TimestampSent, req.TimestampType)
	assert.Equal(t, 2026, req.ContentTimestamp.Year())
	assert.Contains(t, req.Text, "Subject: Quarterly budget")
	assert.Contains(t, req.Text, "review the attached budget")
	assert.NotEmpty(t, req.IdempotencyKey)
	assert.NoError(t, req.Validate())
}

func TestEnvelope_Participants(t *testing.T) {
	req, err := Envelope([]byte(plainMessage))
	require.NoError(t, err)

	require.Len(t, req.People, 3)
	assert.Equal(t, domain.Person{Identifier: "alice@example.com", IdentifierType: "email", Role: "from"}, req.People[0])
	assert.Equal(t, "to", req.People[1].Role)
	assert.Equal(t, "cc", req.People[2].Role)
}

func TestEnvelope_ThreadFromReferences(t *testing.T) {
	msg := strings.Replace(plainMessage,
		"Message-ID: <msg-001@example.com>",
		"Message-ID: <msg-003@example.com>\nReferences: <msg-001@example.com> <msg-002@example.com>",
		1)

	req, err := Envelope([]byte(msg))
	require.NoError(t, err)

	require.NotNil(t, req.Thread)
	assert.Equal(t, "msg-001@example.com", req.Thread.ExternalID)
}

func TestEnvelope_ThreadDefaultsToSelf(t *testing.T) {
	req, err := Envelope([]byte(plainMessage))
	require.NoError(t, err)

	require.NotNil(t, req.Thread)
	assert.Equal(t, "msg-001@example.com", req.Thread.ExternalID)
}

func TestEnvelope_MultipartWithAttachment(t *testing.T) {
	msg := `From: alice@example.com
To: bob@example.com
Subject: With attachment
Message-ID: <msg-010@example.com>
Date: Mon, 02 Mar 2026 09:00:00 +0000
Content-Type: multipart/mixed; boundary="BOUNDARY"

--BOUNDARY
Content-Type: text/plain

See the attached notes.
--BOUNDARY
Content-Type: application/pdf
Content-Disposition: attachment; filename="notes.pdf"

fake pdf bytes
--BOUNDARY--
`

	req, err := Envelope([]byte(msg))
	require.NoError(t, err)

	assert.Contains(t, req.Text, "See the attached notes.")
	require.Len(t, req.Attachments, 1)
	assert.Equal(t, "notes.pdf", req.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", req.Attachments[0].MimeType)
	assert.Equal(t, domain.FileRoleAttachment, req.Attachments[0].Role)
}

func TestEnvelope_HTMLOnlyBody(t *testing.T) {
	msg := `From: alice@example.com
To: bob@example.com
Subject: HTML
Message-ID: <msg-011@example.com>
Date: Mon, 02 Mar 2026 09:00:00 +0000
Content-Type: text/html

<html><body><p>Hello <b>world</b></p></body></html>
`

	req, err := Envelope([]byte(msg))
	require.NoError(t, err)

	assert.Contains(t, req.Text, "Hello world")
	assert.NotContains(t, req.Text, "<b>")
}

func TestEnvelope_MissingMessageID(t *testing.T) {
	msg := strings.Replace(plainMessage, "Message-ID: <msg-001@example.com>\n", "", 1)

	req, err := Envelope([]byte(msg))
	require.NoError(t, err)

	// Content hash stands in for the missing identity.
	assert.Len(t, req.ExternalID, 64)
}

func TestEnvelope_SameBytesSameKey(t *testing.T) {
	a, err := Envelope([]byte(plainMessage))
	require.NoError(t, err)
	b, err := Envelope([]byte(plainMessage))
	require.NoError(t, err)

	assert.Equal(t, a.IdempotencyKey, b.IdempotencyKey)
}

func TestEnvelope_NotAnEmail(t *testing.T) {
	_, err := Envelope([]byte("definitely not rfc 5322"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
