package consequence

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultSignificance is assumed when the rating marker is absent or
// unparsable.
const DefaultSignificance = 5

var (
	summaryPattern      = regexp.MustCompile(`(?s)\[SUMMARY\](.*?)(?:\[SIGNIFICANCE|$)`)
	significancePattern = regexp.MustCompile(`\[SIGNIFICANCE:\s*(\d+)\]`)
)

// ParseSummary extracts the summary text and significance rating from a
// completion response of the form "[SUMMARY]...[SIGNIFICANCE: n]". When the
// summary marker is absent the entire response is treated as the summary;
// when the rating marker is absent or unparsable the default mid-range rating
// is returned. Parsing never fails.
func ParseSummary(response string) (string, int) {
	summary := response
	if m := summaryPattern.FindStringSubmatch(response); m != nil {
		summary = strings.TrimSpace(m[1])
	}
	significance := DefaultSignificance
	if m := significancePattern.FindStringSubmatch(response); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			significance = n
		}
	}
	return summary, significance
}

// Effect is one structured consequence extracted from a completion response.
type Effect struct {
	Character string
	Kind      string
	Target    string
	Value     int
}

// ParseEffects scans a response line by line accumulating Character / Effect /
// Target / Value fields; each time all four are present an Effect is emitted
// and the effect-specific fields reset, so one response can carry several
// effects for the same character. Lines that do not match any field, and
// records whose value is not an integer, are skipped. The parser is tolerant:
// it never returns an error.
func ParseEffects(response string) []Effect {
	var effects []Effect
	var character, kind, target, value string

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Character:"):
			character = fieldValue(line)
		case strings.HasPrefix(line, "Effect:"):
			kind = fieldValue(line)
		case strings.HasPrefix(line, "Target:"):
			target = fieldValue(line)
		case strings.HasPrefix(line, "Value:"):
			value = fieldValue(line)
		}

		if character != "" && kind != "" && target != "" && value != "" {
			if n, err := strconv.Atoi(strings.TrimPrefix(value, "+")); err == nil {
				effects = append(effects, Effect{Character: character, Kind: kind, Target: target, Value: n})
			}
			// Character persists: a response may list several effects for
			// the same character without repeating the Character line.
			kind, target, value = "", "", ""
		}
	}
	return effects
}

func fieldValue(line string) string {
	if _, rest, ok := strings.Cut(line, ":"); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}
