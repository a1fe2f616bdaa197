package rule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// CleanRule is one pattern/replacement pair of a ## cleaning chain.
type CleanRule struct {
	Pattern     string
	Replacement string
}

var groupRefRe = regexp.MustCompile(`\$(?:\{(\d+)\}|(\d+))`)

// MatchTimeout bounds one match of a source regex.
var MatchTimeout = 2 * time.Second

// compile builds a source pattern in the backtracking dialect (lookaround and
// backreferences allowed), with dot matching newlines. Replacements use $1,
// ${1} and $0.
func compile(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.Singleline)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = MatchTimeout
	return re, nil
}

// ParseAllInOne runs the rule's pattern over the whole content and returns one
// record per match keyed "$1".."$n". Matches without any participating group
// are dropped.
func ParseAllInOne(rule, content string) ([]map[string]string, error) {
	pattern := strings.TrimPrefix(strings.TrimSpace(rule), ":")
	re, err := compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile all-in-one pattern: %w", err)
	}
	var records []map[string]string
	m, err := re.FindStringMatch(content)
	for ; m != nil && err == nil; m, err = re.FindNextMatch(m) {
		rec := make(map[string]string)
		for i, g := range m.Groups() {
			if i == 0 || len(g.Captures) == 0 {
				continue
			}
			rec[fmt.Sprintf("$%d", i)] = g.String()
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	if err != nil {
		return records, fmt.Errorf("match all-in-one pattern: %w", err)
	}
	return records, nil
}

// SplitClean separates a rule into its base and the ## cleaning pairs that
// follow it. An odd trailing pattern gets an empty replacement.
func SplitClean(rule string) (string, []CleanRule) {
	parts := strings.Split(rule, "##")
	if len(parts) < 2 {
		return rule, nil
	}
	var rules []CleanRule
	for i := 1; i < len(parts); i += 2 {
		cr := CleanRule{Pattern: parts[i]}
		if i+1 < len(parts) {
			cr.Replacement = parts[i+1]
		}
		rules = append(rules, cr)
	}
	return parts[0], rules
}

// Clean applies the pairs in order. Patterns that do not compile or time out
// are skipped.
func Clean(content string, rules []CleanRule) string {
	for _, cr := range rules {
		if cr.Pattern == "" {
			continue
		}
		re, err := compile(cr.Pattern)
		if err != nil {
			continue
		}
		if out, err := re.Replace(content, cr.Replacement, -1, -1); err == nil {
			content = out
		}
	}
	return content
}

// IsOnlyOne reports whether the rule has the ##pattern##replacement### form.
func IsOnlyOne(rule string) bool {
	r := strings.TrimSpace(rule)
	return strings.HasPrefix(r, "##") && strings.HasSuffix(r, "###")
}

// ParseOnlyOne returns the first match of the rule's pattern, rewritten with the
// replacement when one is given. No match yields "".
func ParseOnlyOne(rule, content string) (string, error) {
	r := strings.TrimSpace(rule)
	r = strings.TrimSuffix(strings.TrimPrefix(r, "##"), "###")
	pattern, repl, hasRepl := strings.Cut(r, "##")
	re, err := compile(pattern)
	if err != nil {
		return "", fmt.Errorf("compile only-one pattern: %w", err)
	}
	m, err := re.FindStringMatch(content)
	if err != nil {
		return "", fmt.Errorf("match only-one pattern: %w", err)
	}
	if m == nil {
		return "", nil
	}
	if !hasRepl || repl == "$0" {
		return m.String(), nil
	}
	return expand(m, repl), nil
}

// expand substitutes $0..$n and ${n} in repl with the groups of m.
func expand(m *regexp2.Match, repl string) string {
	return groupRefRe.ReplaceAllStringFunc(repl, func(ref string) string {
		n, _ := strconv.Atoi(groupNumber(ref))
		if g := m.GroupByNumber(n); g != nil {
			return g.String()
		}
		return ""
	})
}

// ReplaceLines applies a newline separated list of ##pattern##replacement
// lines, the format of a content rule's replaceRegex.
func ReplaceLines(content, lines string) string {
	for _, line := range strings.Split(lines, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "##") {
			line = "##" + line
		}
		_, rules := SplitClean(line)
		content = Clean(content, rules)
	}
	return content
}

// FirstGroup returns the first capture group of the first match, or the whole
// match when the pattern has no groups.
func FirstGroup(pattern, content string) (string, error) {
	re, err := compile(pattern)
	if err != nil {
		return "", fmt.Errorf("compile pattern: %w", err)
	}
	m, err := re.FindStringMatch(content)
	switch {
	case err != nil:
		return "", fmt.Errorf("match pattern: %w", err)
	case m == nil:
		return "", nil
	case m.GroupCount() > 1:
		return m.GroupByNumber(1).String(), nil
	}
	return m.String(), nil
}

// Substitute replaces $1..$n references in a field rule with values from an
// all-in-one record.
func Substitute(rule string, rec map[string]string) string {
	return groupRefRe.ReplaceAllStringFunc(rule, func(ref string) string {
		return rec["$"+groupNumber(ref)]
	})
}

func groupNumber(ref string) string {
	sub := groupRefRe.FindStringSubmatch(ref)
	return sub[1] + sub[2]
}
