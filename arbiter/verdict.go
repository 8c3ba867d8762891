package arbiter

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/nlip-soln/nlipmesh/internal/util"
)

// parseVerdicts runs the strict parse of a rater's output. The result maps
// zero-based peer position to the correct/incorrect verdict. The boolean is
// false when the output is unusable; the caller then excludes the rater's
// votes rather than failing the arbitration.
func parseVerdicts(raw string, peerCount int) (map[int]bool, bool) {
	if verdicts, ok := parseJSONVerdicts(raw, peerCount); ok {
		return verdicts, true
	}
	return parseLineVerdicts(raw, peerCount)
}

func parseJSONVerdicts(raw string, peerCount int) (map[int]bool, bool) {
	obj, ok := util.ExtractJSONObject(raw)
	if !ok {
		return nil, false
	}
	var parsed struct {
		Verdicts []struct {
			Answer  int  `json:"answer"`
			Correct bool `json:"correct"`
		} `json:"verdicts"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil, false
	}
	if len(parsed.Verdicts) == 0 {
		return nil, false
	}

	verdicts := make(map[int]bool, len(parsed.Verdicts))
	for _, v := range parsed.Verdicts {
		if v.Answer < 1 || v.Answer > peerCount {
			return nil, false
		}
		verdicts[v.Answer-1] = v.Correct
	}
	return verdicts, true
}

// lineVerdictPattern matches the degraded "1: correct" / "2. incorrect"
// format some models fall back to despite the JSON instruction.
var lineVerdictPattern = regexp.MustCompile(`^\s*(\d+)\s*[:.)\-]\s*(correct|incorrect|yes|no)\b`)

func parseLineVerdicts(raw string, peerCount int) (map[int]bool, bool) {
	verdicts := make(map[int]bool)
	for _, line := range strings.Split(raw, "\n") {
		m := lineVerdictPattern.FindStringSubmatch(strings.ToLower(line))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > peerCount {
			continue
		}
		verdicts[n-1] = m[2] == "correct" || m[2] == "yes"
	}
	return verdicts, len(verdicts) > 0
}
