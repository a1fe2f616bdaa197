package rule

import "strings"

// Connector joins several alternative rules into one list rule.
type Connector int

const (
	ConnectorNone Connector = iota
	// ConnectorAnd concatenates the results of every part (&&).
	ConnectorAnd
	// ConnectorOr keeps the first part that yields anything (||).
	ConnectorOr
	// ConnectorMod interleaves the parts round-robin (%%).
	ConnectorMod
)

func (c Connector) Separator() string {
	switch c {
	case ConnectorAnd:
		return "&&"
	case ConnectorOr:
		return "||"
	case ConnectorMod:
		return "%%"
	case ConnectorNone:
	}
	return ""
}

// DetectConnector checks for && first, then ||, then %%. A rule that mixes
// connectors is split on the first one found in that order only.
func DetectConnector(rule string) Connector {
	switch {
	case strings.Contains(rule, "&&"):
		return ConnectorAnd
	case strings.Contains(rule, "||"):
		return ConnectorOr
	case strings.Contains(rule, "%%"):
		return ConnectorMod
	}
	return ConnectorNone
}

func SplitByConnector(rule string, c Connector) []string {
	if c == ConnectorNone {
		return []string{strings.TrimSpace(rule)}
	}
	parts := strings.Split(rule, c.Separator())
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Merge combines per-part results according to the connector.
func Merge[T any](lists [][]T, c Connector) []T {
	switch c {
	case ConnectorOr:
		for _, l := range lists {
			if len(l) > 0 {
				return l
			}
		}
		return nil
	case ConnectorMod:
		longest := 0
		for _, l := range lists {
			longest = max(longest, len(l))
		}
		var out []T
		for i := 0; i < longest; i++ {
			for _, l := range lists {
				if i < len(l) {
					out = append(out, l[i])
				}
			}
		}
		return out
	case ConnectorAnd, ConnectorNone:
	}
	var out []T
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
