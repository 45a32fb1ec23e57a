// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mailbox fetches alert emails from the user's mail account.
//
// The only live implementation reads Gmail through its REST API with a
// read-only OAuth scope. Fetching is coarse: one subject-and-date query
// server-side, full message bodies decoded locally. Digest detection
// beyond the query is the parser's job.
package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/pdiddy/paper-loupe/pkg/types"
)

// Source yields alert emails received since a cutoff.
type Source interface {
	Fetch(ctx context.Context, since time.Time) ([]types.Email, error)
}

// BuildQuery returns the Gmail search expression for alert emails
// after the cutoff date. Gmail's after: operator takes YYYY/MM/DD in
// the mailbox's local time; the cutoff is truncated to a day.
func BuildQuery(since time.Time) string {
	return fmt.Sprintf(`subject:"Scholar Alert" after:%s`, since.Format("2006/01/02"))
}

// decodeEmail flattens one API message into an Email.
func decodeEmail(msg *gmail.Message) types.Email {
	email := types.Email{
		ID:   msg.Id,
		Date: time.UnixMilli(msg.InternalDate).UTC(),
	}
	if msg.Payload == nil {
		return email
	}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "Subject":
			email.Subject = h.Value
		case "From":
			email.From = h.Value
		}
	}
	email.HTML = partBody(msg.Payload, "text/html")
	email.Text = partBody(msg.Payload, "text/plain")
	return email
}

// partBody walks the MIME tree depth-first and returns the first part
// of the wanted type. Simple messages carry the body on the root part.
func partBody(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		if decoded, err := decodeBody(part.Body.Data); err == nil {
			return decoded
		}
	}
	for _, child := range part.Parts {
		if body := partBody(child, mimeType); body != "" {
			return body
		}
	}
	return ""
}

// decodeBody decodes Gmail's base64url body data, which arrives with
// or without padding depending on the producing client.
func decodeBody(data string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", fmt.Errorf("decoding body: %w", err)
	}
	return string(raw), nil
}
