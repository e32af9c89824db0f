package services

import "strings"

// ConversationKey derives the stable id for a two-party conversation:
// the participant ids sorted lexicographically and joined with an
// underscore. Both sides compute the same key with no coordination
// round-trip, so it doubles as the conversation document id.
func ConversationKey(userA, userB string) (string, error) {
	a := strings.TrimSpace(userA)
	b := strings.TrimSpace(userB)
	if a == "" || b == "" {
		return "", ErrInvalidParticipant
	}

	if b < a {
		a, b = b, a
	}
	return a + "_" + b, nil
}
