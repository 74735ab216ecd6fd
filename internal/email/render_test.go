package email

import (
	"strings"
	"testing"

	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/outbox"
	"github.com/stretchr/testify/assert"
)

func digestRecord(title, content string) *outbox.Record {
	return &outbox.Record{
		Channel:      domain.ChannelEmail,
		EventType:    domain.EventDMReceived,
		TargetUserID: "user-1",
		Title:        title,
		Content:      content,
	}
}

func TestBuildDigest_Single(t *testing.T) {
	d := BuildDigest([]*outbox.Record{
		digestRecord("New message from Alice", "Hey, are you coming?"),
	})

	assert.Equal(t, "New message from Alice", d.Subject)
	assert.Equal(t, "Hey, are you coming?", d.TextBody)
	assert.Contains(t, d.HTMLBody, "<h2>New message from Alice</h2>")
	assert.Contains(t, d.HTMLBody, "Hey, are you coming?")
}

func TestBuildDigest_Multiple(t *testing.T) {
	d := BuildDigest([]*outbox.Record{
		digestRecord("New message from Alice", "first"),
		digestRecord("New message from Alice", "second"),
		digestRecord("New message from Alice", "third"),
	})

	assert.Equal(t, "3 new notifications", d.Subject)

	// bodies appear in arrival order
	assert.Less(t, strings.Index(d.TextBody, "first"), strings.Index(d.TextBody, "second"))
	assert.Less(t, strings.Index(d.TextBody, "second"), strings.Index(d.TextBody, "third"))
	assert.Less(t, strings.Index(d.HTMLBody, "first"), strings.Index(d.HTMLBody, "second"))

	assert.Equal(t, 3, strings.Count(d.HTMLBody, "<li>"))
}

func TestBuildDigest_EscapesHTML(t *testing.T) {
	d := BuildDigest([]*outbox.Record{
		digestRecord("<script>alert(1)</script>", "a & b"),
		digestRecord("second", "<img src=x>"),
	})

	assert.NotContains(t, d.HTMLBody, "<script>")
	assert.Contains(t, d.HTMLBody, "&lt;script&gt;")
	assert.Contains(t, d.HTMLBody, "a &amp; b")
	assert.NotContains(t, d.HTMLBody, "<img")
}

func TestRenderHTML_PreservesLineBreaks(t *testing.T) {
	out := renderHTML("title", "line one\nline two")
	assert.Contains(t, out, "line one<br>line two")
}
