package mapping

import (
	"fmt"
	"regexp"
)

// Response templates. The success template inspects the status field of the
// backend's result envelope: a failed run overrides the HTTP status to 500
// and surfaces the error and cause, anything else passes the output field
// through verbatim. The 500 pattern template deliberately emits a bare
// key/value fragment rather than a full JSON object; the upstream platform
// templates behave the same way and consumers depend on the exact body.
const (
	successTemplate = `#set($inputRoot = $input.path('$'))
#if($input.path('$.status').toString().equals("FAILED"))
#set($context.responseOverride.status = 500)
{"error": "$input.path('$.error')", "cause": "$input.path('$.cause')"}
#else
$input.path('$.output')
#end`
	clientErrorTemplate = `{"error": "Bad input!"}`
	serverErrorTemplate = `"error": $input.path('$.error')`
)

// Selection patterns partition transport-level backend errors on the
// leading digit of the reported status.
const (
	clientErrorPattern = `4\d{2}`
	serverErrorPattern = `5\d{2}`
)

// Rule is one ordered response classification entry. An empty
// SelectionPattern marks the default success rule; a non-empty pattern is a
// regular expression matched whole against the backend's raw error signal.
type Rule struct {
	SelectionPattern string
	StatusCode       string
	Templates        map[string]string
}

// Matches reports whether the rule's selection pattern matches the whole of
// signal. The success rule (no pattern) never pattern-matches; it is applied
// unconditionally by the surrounding invocation mechanism instead.
func (r Rule) Matches(signal string) bool {
	if r.SelectionPattern == "" {
		return false
	}
	re, err := compilePattern(r.SelectionPattern)
	if err != nil {
		return false
	}
	return re.MatchString(signal)
}

// compilePattern anchors the selection pattern so matching follows the
// platform's whole-string semantics: 4\d{2} matches 404 but not 1400.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("compile selection pattern %q: %w", pattern, err)
	}
	return re, nil
}

// Rules returns the default ordered response rule set. Declaration order is
// significant: the unconditional success rule comes first, then the client
// error partition, then the server error partition. First match wins for
// the pattern rules.
func Rules() []Rule {
	return []Rule{
		{
			StatusCode: "200",
			Templates:  map[string]string{ContentTypeJSON: successTemplate},
		},
		{
			SelectionPattern: clientErrorPattern,
			StatusCode:       "400",
			Templates:        map[string]string{ContentTypeJSON: clientErrorTemplate},
		},
		{
			SelectionPattern: serverErrorPattern,
			StatusCode:       "500",
			Templates:        map[string]string{ContentTypeJSON: serverErrorTemplate},
		},
	}
}

// Match scans the pattern rules in declaration order and returns the first
// one whose selection pattern matches signal.
func Match(rules []Rule, signal string) (Rule, bool) {
	for _, rule := range rules {
		if rule.Matches(signal) {
			return rule, true
		}
	}
	return Rule{}, false
}
