package billing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"

	"machtms/internal/documents"
)

// Attachment is one PDF attached to the invoice email.
type Attachment struct {
	FileName string
	Data     []byte
}

// InvoiceFileName builds the attachment name for a rendered invoice.
func InvoiceFileName(customerName, invoiceID, reference string) string {
	name := documents.CustomerShorthand(customerName)
	for _, part := range []string{invoiceID, reference} {
		if part != "" {
			name += "_" + part
		}
	}
	return name + "_invoice.pdf"
}

// InvoiceSubject builds the email subject line.
func InvoiceSubject(customerName, reference string) string {
	return fmt.Sprintf("%s / Shipment# %s [Invoice]", customerName, reference)
}

// InvoiceBody builds the plain-text email body. A non-empty remit
// message is appended as its own paragraph.
func InvoiceBody(reference, remit string) string {
	body := fmt.Sprintf("Hello,\n\nAttached you'll find the documents for shipment# %s", reference)
	if remit != "" {
		body += "\n\n" + remit
	}
	return body
}

// BuildMIMEMessage assembles the RFC 2822 multipart message the Gmail
// API expects in its raw field, before base64 encoding.
func BuildMIMEMessage(from, to, subject, body string, attachments []Attachment) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", `text/plain; charset="UTF-8"`)
	part, err := writer.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(body)); err != nil {
		return nil, err
	}

	for _, attachment := range attachments {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", "application/pdf")
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", attachment.FileName))
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(part, attachment.Data); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBase64Lines encodes data in 76-character lines as RFC 2045
// requires for the base64 transfer encoding.
func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := 76
		if len(encoded) < n {
			n = len(encoded)
		}
		if _, err := io.WriteString(w, encoded[:n]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
