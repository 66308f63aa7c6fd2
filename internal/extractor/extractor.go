// Package extractor pulls unsubscribe links out of raw email messages.
package extractor

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	// Register charset decoders (windows-1252, iso-8859-*, koi8-r, etc.)
	_ "github.com/emersion/go-message/charset"
)

// Extract returns every unsubscribe link found in the HTML parts of the raw
// message, in document order. The part walk flattens nested multipart
// structures; parts that fail to decode are skipped and the rest of the
// message is still scanned. A message with no HTML parts yields nil.
func Extract(raw []byte) []string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		slog.Debug("unreadable message, no links extracted", "error", err)
		return nil
	}
	if mr == nil {
		return nil
	}
	defer mr.Close()

	var links []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			slog.Debug("part walk stopped early", "error", err)
			break
		}
		if part == nil {
			break
		}

		if contentType(part) != "text/html" {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			slog.Debug("part decode failed, skipping part", "error", err)
			continue
		}
		links = append(links, scanHTML(body)...)
	}
	return links
}

// ListUnsubscribe returns the http(s) targets of the message's
// List-Unsubscribe header. mailto entries are ignored.
func ListUnsubscribe(raw []byte) []string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil
	}
	if mr == nil {
		return nil
	}
	defer mr.Close()

	value := mr.Header.Get("List-Unsubscribe")
	if value == "" {
		return nil
	}

	var links []string
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		entry = strings.TrimPrefix(entry, "<")
		entry = strings.TrimSuffix(entry, ">")
		if strings.HasPrefix(entry, "http://") || strings.HasPrefix(entry, "https://") {
			links = append(links, entry)
		}
	}
	return links
}

// contentType returns the part's media type, or "" if it cannot be parsed.
func contentType(part *mail.Part) string {
	switch h := part.Header.(type) {
	case *mail.InlineHeader:
		mediaType, _, _ := h.ContentType()
		return mediaType
	case *mail.AttachmentHeader:
		mediaType, _, _ := h.ContentType()
		return mediaType
	}
	return ""
}

// scanHTML collects the hrefs of anchors that look like unsubscribe links.
func scanHTML(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		slog.Debug("html parse failed, skipping part", "error", err)
		return nil
	}

	var links []string
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		if strings.Contains(strings.ToLower(href), "unsubscribe") {
			links = append(links, href)
		}
	})
	return links
}
