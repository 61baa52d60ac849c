package compose

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/flowdesk/mailsync/pkg/models"
)

// signatureDelimiter is the conventional "-- " separator mail clients use to
// mark the start of a signature block.
const signatureDelimiter = "-- "

// buildMIME assembles the full MIME envelope for an outbound message. The
// body's line breaks are normalized to CRLF and the signature, when present,
// is appended after the conventional delimiter. With attachments the envelope
// is multipart/mixed with one part per attachment plus the body part;
// otherwise it is a single text part.
func buildMIME(to, subject, body, signature string, attachments []models.Attachment) ([]byte, error) {
	content := toCRLF(body)
	if signature != "" {
		content += "\r\n\r\n" + signatureDelimiter + "\r\n" + toCRLF(signature)
	}

	if len(attachments) == 0 {
		var buf bytes.Buffer
		writeHeader(&buf, "To", to)
		writeHeader(&buf, "Subject", subject)
		writeHeader(&buf, "MIME-Version", "1.0")
		writeHeader(&buf, "Content-Type", `text/html; charset="UTF-8"`)
		buf.WriteString("\r\n")
		buf.WriteString(content)
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	writeHeader(&buf, "To", to)
	writeHeader(&buf, "Subject", subject)
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", fmt.Sprintf(`multipart/mixed; boundary="%s"`, writer.Boundary()))
	buf.WriteString("\r\n")

	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", `text/html; charset="UTF-8"`)
	bodyPart, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create body part: %w", err)
	}
	if _, err := bodyPart.Write([]byte(content)); err != nil {
		return nil, fmt.Errorf("failed to write body part: %w", err)
	}

	for _, att := range attachments {
		partHeader := textproto.MIMEHeader{}
		mimeType := att.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		partHeader.Set("Content-Type", fmt.Sprintf(`%s; name="%s"`, mimeType, att.Filename))
		partHeader.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, att.Filename))
		partHeader.Set("Content-Transfer-Encoding", "base64")

		part, err := writer.CreatePart(partHeader)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment part %s: %w", att.Filename, err)
		}
		if _, err := part.Write([]byte(base64.StdEncoding.EncodeToString(att.Content))); err != nil {
			return nil, fmt.Errorf("failed to write attachment %s: %w", att.Filename, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize envelope: %w", err)
	}

	return buf.Bytes(), nil
}

// encodeRaw encodes the envelope the way the transport requires:
// base64url without padding.
func encodeRaw(envelope []byte) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(envelope)
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

// toCRLF converts bare LF line breaks to the CRLF convention the wire format
// expects, leaving existing CRLF pairs alone.
func toCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
