// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Email is one fetched mail message with its body already decoded.
type Email struct {
	// ID is the provider's message identifier.
	ID string `json:"id" yaml:"id"`

	// Subject is the decoded Subject header.
	Subject string `json:"subject" yaml:"subject"`

	// From is the sender address.
	From string `json:"from" yaml:"from"`

	// Date is when the message was received.
	Date time.Time `json:"date" yaml:"date"`

	// HTML is the text/html body part, empty when the message has none.
	HTML string `json:"html,omitempty" yaml:"html,omitempty"`

	// Text is the text/plain body part, used when HTML is empty.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}
