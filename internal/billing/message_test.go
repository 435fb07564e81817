package billing

import (
	"strings"
	"testing"
)

func TestInvoiceFileName(t *testing.T) {
	cases := []struct {
		customer, invoiceID, reference, want string
	}{
		{"Acme Logistics LLC", "inv-1", "REF-9", "Acme_inv-1_REF-9_invoice.pdf"},
		{"Acme Logistics LLC", "", "REF-9", "Acme_REF-9_invoice.pdf"},
		{"JB Hunt Transportation Group", "inv-2", "", "JBHunt_inv-2_invoice.pdf"},
	}
	for _, tc := range cases {
		if got := InvoiceFileName(tc.customer, tc.invoiceID, tc.reference); got != tc.want {
			t.Errorf("InvoiceFileName(%q, %q, %q) = %q, want %q",
				tc.customer, tc.invoiceID, tc.reference, got, tc.want)
		}
	}
}

func TestInvoiceSubjectAndBody(t *testing.T) {
	subject := InvoiceSubject("Acme Logistics LLC", "REF-9")
	if subject != "Acme Logistics LLC / Shipment# REF-9 [Invoice]" {
		t.Fatalf("subject = %q", subject)
	}
	body := InvoiceBody("REF-9", "")
	if !strings.HasPrefix(body, "Hello,") || !strings.Contains(body, "shipment# REF-9") {
		t.Fatalf("body = %q", body)
	}
	withRemit := InvoiceBody("REF-9", "Remit payment to PO Box 12")
	if !strings.HasSuffix(withRemit, "Remit payment to PO Box 12") {
		t.Fatalf("body = %q", withRemit)
	}
}

func TestBuildMIMEMessage(t *testing.T) {
	raw, err := BuildMIMEMessage(
		"billing@example.com",
		"ap@customer.com",
		"Acme / Shipment# REF-9 [Invoice]",
		"Hello,\n\nAttached you'll find the documents for shipment# REF-9",
		[]Attachment{{FileName: "Acme_REF-9_invoice.pdf", Data: []byte("%PDF-1.4 fake")}},
	)
	if err != nil {
		t.Fatalf("BuildMIMEMessage: %v", err)
	}
	message := string(raw)

	for _, want := range []string{
		"From: billing@example.com\r\n",
		"To: ap@customer.com\r\n",
		"Subject: Acme / Shipment# REF-9 [Invoice]\r\n",
		"Content-Type: multipart/mixed; boundary=",
		`Content-Type: text/plain; charset="UTF-8"`,
		"Content-Transfer-Encoding: base64",
		`Content-Disposition: attachment; filename="Acme_REF-9_invoice.pdf"`,
	} {
		if !strings.Contains(message, want) {
			t.Errorf("message missing %q", want)
		}
	}
}
