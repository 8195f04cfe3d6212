package utils

import (
	"strings"
	"testing"
)

// crlf rewrites test fixtures to proper RFC822 line endings.
func crlf(raw string) string {
	return strings.ReplaceAll(raw, "\n", "\r\n")
}

const multipartFixture = `From: Alice Founder <ALICE@startup.io>
To: bob@fund.vc
Cc: carol@fund.vc
Subject: Re: Quarterly update
Date: Mon, 02 Jan 2023 15:04:05 +0000
Message-ID: <m2@startup.io>
In-Reply-To: <m1@fund.vc>
References: <m1@fund.vc>
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

Numbers attached.
--inner
Content-Type: text/html; charset=utf-8

<p>Numbers <img src="cid:img1"> attached.</p>
--inner--
--outer
Content-Type: image/png
Content-Disposition: inline; filename="chart.png"
Content-ID: <img1>

PNGBYTES
--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="deck.pdf"

PDFBYTES
--outer--
`

func TestParseMessageMultipart(t *testing.T) {
	parsed, err := ParseMessage(strings.NewReader(crlf(multipartFixture)))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}

	if parsed.Subject != "Re: Quarterly update" {
		t.Errorf("subject = %q", parsed.Subject)
	}
	if parsed.MessageID != "<m2@startup.io>" {
		t.Errorf("message id = %q", parsed.MessageID)
	}
	if parsed.InReplyTo != "<m1@fund.vc>" {
		t.Errorf("in-reply-to = %q", parsed.InReplyTo)
	}
	if parsed.Date.IsZero() {
		t.Error("date not parsed")
	}

	if len(parsed.From) != 1 || parsed.From[0].Email != "alice@startup.io" {
		t.Fatalf("from = %+v", parsed.From)
	}
	if parsed.From[0].Name == nil || *parsed.From[0].Name != "Alice Founder" {
		t.Errorf("from name = %v", parsed.From[0].Name)
	}
	if len(parsed.To) != 1 || parsed.To[0].Email != "bob@fund.vc" {
		t.Errorf("to = %+v", parsed.To)
	}
	if len(parsed.Cc) != 1 || parsed.Cc[0].Email != "carol@fund.vc" {
		t.Errorf("cc = %+v", parsed.Cc)
	}

	if parsed.TextBody == nil || !strings.Contains(*parsed.TextBody, "Numbers attached.") {
		t.Errorf("text body = %v", parsed.TextBody)
	}
	if parsed.HTMLBody == nil || !strings.Contains(*parsed.HTMLBody, "cid:img1") {
		t.Errorf("html body = %v", parsed.HTMLBody)
	}

	if len(parsed.Attachments) != 2 {
		t.Fatalf("attachment count = %d, want 2", len(parsed.Attachments))
	}

	inline := parsed.Attachments[0]
	if !inline.IsInline {
		t.Error("first attachment should be inline")
	}
	if inline.FileName != "chart.png" {
		t.Errorf("inline filename = %q", inline.FileName)
	}
	if inline.ContentID == nil || *inline.ContentID != "img1" {
		t.Errorf("inline content id = %v", inline.ContentID)
	}
	if !strings.HasPrefix(inline.ContentType, "image/png") {
		t.Errorf("inline content type = %q", inline.ContentType)
	}
	if inline.SizeBytes != int64(len(inline.Data)) || inline.SizeBytes == 0 {
		t.Errorf("inline size = %d, data = %d", inline.SizeBytes, len(inline.Data))
	}

	regular := parsed.Attachments[1]
	if regular.IsInline {
		t.Error("second attachment should not be inline")
	}
	if regular.FileName != "deck.pdf" {
		t.Errorf("attachment filename = %q", regular.FileName)
	}
	if !strings.Contains(string(regular.Data), "PDFBYTES") {
		t.Errorf("attachment data = %q", regular.Data)
	}
}

func TestParseMessageFirstBodyWins(t *testing.T) {
	fixture := `From: a@example.com
To: b@example.com
Subject: Two plains
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: text/plain

first body
--b
Content-Type: text/plain

second body
--b--
`
	parsed, err := ParseMessage(strings.NewReader(crlf(fixture)))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}

	if parsed.TextBody == nil || !strings.Contains(*parsed.TextBody, "first body") {
		t.Errorf("text body = %v, want the first text/plain part", parsed.TextBody)
	}
	if parsed.TextBody != nil && strings.Contains(*parsed.TextBody, "second body") {
		t.Error("second text/plain part leaked into the body")
	}
	if len(parsed.Attachments) != 0 {
		t.Errorf("duplicate body parts must be ignored, got %d attachments", len(parsed.Attachments))
	}
}

func TestParseMessagePlainSingle(t *testing.T) {
	fixture := `From: a@example.com
To: b@example.com
Subject: Plain
Date: Mon, 02 Jan 2023 15:04:05 +0000

just text
`
	parsed, err := ParseMessage(strings.NewReader(crlf(fixture)))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}

	if parsed.TextBody == nil || !strings.Contains(*parsed.TextBody, "just text") {
		t.Errorf("text body = %v", parsed.TextBody)
	}
	if parsed.HTMLBody != nil {
		t.Errorf("unexpected html body: %q", *parsed.HTMLBody)
	}
	if parsed.InReplyTo != "" {
		t.Errorf("unexpected in-reply-to: %q", parsed.InReplyTo)
	}
}

func TestParseMessageAttachmentWithoutFilename(t *testing.T) {
	fixture := `From: a@example.com
To: b@example.com
Subject: Nameless
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: text/plain

body
--b
Content-Type: application/octet-stream
Content-Disposition: attachment

RAWBYTES
--b--
`
	parsed, err := ParseMessage(strings.NewReader(crlf(fixture)))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}

	if len(parsed.Attachments) != 1 {
		t.Fatalf("attachment count = %d", len(parsed.Attachments))
	}
	if parsed.Attachments[0].FileName != "attachment" {
		t.Errorf("filename = %q, want fallback name", parsed.Attachments[0].FileName)
	}
}

func TestTrimAngleBrackets(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"<img1>", "img1"},
		{"img1", "img1"},
		{" <m1@example.com> ", "m1@example.com"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := TrimAngleBrackets(tc.in); got != tc.want {
			t.Errorf("TrimAngleBrackets(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
