package eval

import (
	"regexp"
	"strings"
)

// AI verdicts.
const (
	VerdictPass         = "pass"
	VerdictFail         = "fail"
	VerdictInconclusive = "inconclusive"
)

// Human verdicts. The last three are data-quality exceptions and never
// count as disagreements.
const (
	HumanPass                = "pass"
	HumanFail                = "fail"
	HumanBadData             = "bad_data"
	HumanAmbiguousQuestion   = "ambiguous_question"
	HumanInsufficientContext = "insufficient_context"
)

// Review statuses.
const (
	ReviewPending   = "pending"
	ReviewCompleted = "completed"
)

func ValidHumanVerdict(v string) bool {
	switch v {
	case HumanPass, HumanFail, HumanBadData, HumanAmbiguousQuestion, HumanInsufficientContext:
		return true
	}
	return false
}

var (
	verdictMarker   = regexp.MustCompile(`(?i)verdict:\s*(pass|fail|inconclusive)`)
	reasoningMarker = regexp.MustCompile(`(?is)reasoning:\s*(.+)`)
)

// ParseVerdict extracts the verdict and reasoning from a judge
// response. Without an explicit Verdict marker it falls back to word
// matching, and defaults to inconclusive. Reasoning is the text after
// the Reasoning marker, or the whole response when the marker is
// missing.
func ParseVerdict(text string) (verdict, reasoning string) {
	if m := verdictMarker.FindStringSubmatch(text); m != nil {
		verdict = strings.ToLower(m[1])
	} else {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "pass") && !strings.Contains(lower, "fail"):
			verdict = VerdictPass
		case strings.Contains(lower, "fail"):
			verdict = VerdictFail
		default:
			verdict = VerdictInconclusive
		}
	}

	if m := reasoningMarker.FindStringSubmatch(text); m != nil {
		reasoning = strings.TrimSpace(m[1])
	} else {
		reasoning = strings.TrimSpace(text)
	}
	return verdict, reasoning
}
