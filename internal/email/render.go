package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/partnerhub/notify/internal/outbox"
)

// Digest is the composed payload of one outbound email, covering one or
// more coalesced notifications.
type Digest struct {
	Subject  string
	TextBody string
	HTMLBody string
}

// BuildDigest composes the email for an ordered set of notifications.
// A single notification keeps its own title; multiple notifications are
// merged under a count subject with bodies concatenated in arrival order.
func BuildDigest(records []*outbox.Record) Digest {
	if len(records) == 1 {
		rec := records[0]
		return Digest{
			Subject:  rec.Title,
			TextBody: rec.Content,
			HTMLBody: renderHTML(rec.Title, rec.Content),
		}
	}

	subject := fmt.Sprintf("%d new notifications", len(records))

	var text strings.Builder
	var htmlBody strings.Builder
	htmlBody.WriteString("<ul>\n")
	for i, rec := range records {
		if i > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(rec.Title)
		text.WriteString("\n")
		text.WriteString(rec.Content)

		htmlBody.WriteString("<li><strong>")
		htmlBody.WriteString(html.EscapeString(rec.Title))
		htmlBody.WriteString("</strong><br>")
		htmlBody.WriteString(html.EscapeString(rec.Content))
		htmlBody.WriteString("</li>\n")
	}
	htmlBody.WriteString("</ul>")

	return Digest{
		Subject:  subject,
		TextBody: text.String(),
		HTMLBody: htmlBody.String(),
	}
}

func renderHTML(title, content string) string {
	return fmt.Sprintf("<h2>%s</h2>\n<p>%s</p>",
		html.EscapeString(title),
		strings.ReplaceAll(html.EscapeString(content), "\n", "<br>"),
	)
}
