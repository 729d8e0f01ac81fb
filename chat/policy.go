package chat

import "strings"

// ContentPolicy filters a chat message's text, flagging whether the
// original was inappropriate (spec.md §4.C13: "the censor library
// returns (censored_text, category_flags); if any flag implies
// inappropriate, the censored text is used; otherwise the original").
type ContentPolicy interface {
	Filter(message string) (censored string, flagged bool)
}

// WordListPolicy is a simple denylist-based ContentPolicy. Grounded on
// original_source/tak-server-app/src/domain/chat.rs's
// RustrictContentPolicy, which wraps the `rustrict` crate's word-list
// censor; no library in this pack's dependency surface offers an
// equivalent profanity filter, so this is a direct, minimal
// reimplementation of the same "word-list replace with asterisks"
// contract rather than a certified moderation engine (spec.md §1 scopes
// the rules engine similarly: a pragmatic implementation, not an
// oracle).
type WordListPolicy struct {
	denylist map[string]struct{}
}

// NewWordListPolicy builds a policy flagging any whitespace-delimited
// word (case-insensitive) appearing in words.
func NewWordListPolicy(words []string) *WordListPolicy {
	denylist := make(map[string]struct{}, len(words))
	for _, w := range words {
		denylist[strings.ToLower(w)] = struct{}{}
	}
	return &WordListPolicy{denylist: denylist}
}

// Filter replaces every denylisted word with asterisks of the same
// length and reports whether anything was replaced.
func (p *WordListPolicy) Filter(message string) (string, bool) {
	fields := strings.Fields(message)
	flagged := false
	for i, word := range fields {
		bare := strings.Trim(strings.ToLower(word), ".,!?;:\"'")
		if _, bad := p.denylist[bare]; bad {
			fields[i] = strings.Repeat("*", len([]rune(word)))
			flagged = true
		}
	}
	if !flagged {
		return message, false
	}
	return strings.Join(fields, " "), true
}
