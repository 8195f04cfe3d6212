package utils

import (
	"strings"
)

// subjectThreadPrefix keeps subject-derived thread ids from colliding with
// real Message-ID headers.
const subjectThreadPrefix = "subject:"

// ResolveThreadID maps a message's headers to its conversation thread id.
// Replies inherit the parent's identity via In-Reply-To; a thread's first
// message anchors the id to its own Message-ID; messages with neither fall
// back to a normalized-subject bucket. Deterministic and free of I/O;
// swapping this single function swaps the threading strategy.
func ResolveThreadID(messageID, inReplyTo, subject string) string {
	if inReplyTo != "" {
		return inReplyTo
	}
	if messageID != "" {
		return messageID
	}
	return subjectThreadPrefix + strings.ToLower(CleanSubject(subject))
}

// CleanSubject strips leading reply/forward tokens and surrounding
// whitespace so "Re: Fwd: Intro" and "Intro" land in the same bucket.
func CleanSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	prefixes := []string{"Re:", "RE:", "re:", "Fwd:", "FWD:", "fwd:", "Fw:", "FW:"}

	for {
		cleaned := false
		for _, prefix := range prefixes {
			if strings.HasPrefix(subject, prefix) {
				subject = strings.TrimSpace(subject[len(prefix):])
				cleaned = true
				break
			}
		}
		if !cleaned {
			break
		}
	}

	return subject
}
