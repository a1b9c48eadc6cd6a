// Package guard classifies raw user input before it reaches any model:
// sanitization, prompt-injection detection, and unsafe-topic screening.
// Deny-on-match heuristics: false positives are acceptable, leaked
// instructions are not.
package guard

import (
	"regexp"
	"strings"
)

// Outcome is the terminal classification of one input.
type Outcome string

const (
	// OutcomeEmpty means the input sanitized to nothing.
	OutcomeEmpty Outcome = "empty"
	// OutcomeInjection means a prompt-injection pattern matched.
	OutcomeInjection Outcome = "injection"
	// OutcomeUnsafe means an unsafe-topic pattern matched.
	OutcomeUnsafe Outcome = "unsafe"
	// OutcomeClean means the input passed every check.
	OutcomeClean Outcome = "clean"
)

// Verdict pairs the classification with the sanitized text.
type Verdict struct {
	Outcome   Outcome
	Sanitized string
}

var (
	disallowedChars = regexp.MustCompile(`[^\p{L}\p{N}\s.,?!-]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
)

// injectionPatterns match prompt-leak and instruction-override attempts.
// Evaluated against the lowercased sanitized text; any match rejects.
var injectionPatterns = compileAll([]string{
	`system(\s+)?(prompt|message|instruction)`,
	`ignore .*previous.*instruction`,
	`echo .*instruction`,
	`repeat .*instruction`,
	`reveal .*prompt`,
	`what was your instruction`,
	`output .*prompt`,
	`what.*(\s+)?prompt(s)?.*given`,
	`your prompt`,
	`print .*prompt`,
	`show me your (prompt|instruction|configuration)`,
	`do not omit`,
	`don.?t omit`,
	`without omitting`,
	`show (everything|all|complete)`,
	`display (all|the entire|full|complete)`,
	`print (all|everything|without omission)`,
	`word for word`,
	`verbatim`,
	`copy and paste`,
	`output the (exact|precise|literal)`,
	`don.?t (filter|withhold|exclude)`,
	`include everything`,
	`disregard (previous|your|above|safety)`,
	`bypass`,
	`override`,
	`starting with`,
	`return full content`,
	`give me the full`,
	`ignore previous instructions`,
	`disregard`,
	`forget`,
	`system prompt`,
	`you are not`,
	`new role`,
	`instead of`,
	`don.?t (be|act)`,
	`stop being`,
})

// unsafePatterns match security, personal-data, explicit, and
// violence-adjacent topics outside the assistant's scope.
var unsafePatterns = compileAll([]string{
	`hack`,
	`exploit`,
	`(credit|debit)(\s+)?card`,
	`password`,
	`credentials`,
	`address`,
	`social security`,
	`private`,
	`confidential`,
	`jailbreak`,
	`ddos`,
	`attack`,
	`(^|\s)(sex|porn|nude|naked)`,
	`(^|\s)(illegal|crime)`,
	`(^|\s)(drug|cocaine|heroin)`,
})

func compileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// Sanitize strips every character outside letters, digits, whitespace and
// ".,?!-", collapses whitespace runs to a single space, and trims.
func Sanitize(raw string) string {
	text := disallowedChars.ReplaceAllString(raw, "")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// DetectInjection reports whether text looks like a prompt-injection
// attempt. Matching is case-insensitive.
func DetectInjection(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range injectionPatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

// CheckSafety reports whether text is safe to forward (true = safe).
func CheckSafety(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range unsafePatterns {
		if p.MatchString(lower) {
			return false
		}
	}
	return true
}

// Classify runs the full gate: sanitize, then injection and safety checks.
func Classify(raw string) Verdict {
	sanitized := Sanitize(raw)
	switch {
	case sanitized == "":
		return Verdict{Outcome: OutcomeEmpty}
	case DetectInjection(sanitized):
		return Verdict{Outcome: OutcomeInjection, Sanitized: sanitized}
	case !CheckSafety(sanitized):
		return Verdict{Outcome: OutcomeUnsafe, Sanitized: sanitized}
	default:
		return Verdict{Outcome: OutcomeClean, Sanitized: sanitized}
	}
}
