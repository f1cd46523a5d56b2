package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON means no decodable JSON value was found in the text.
var ErrNoJSON = errors.New("no JSON value in text")

// DecodeJSON decodes the JSON value carried by free-form model output. It
// tries, in order, the whole text, the body of the first ``` fence, and the
// span from the first opening brace or bracket to the last closing one.
func DecodeJSON[T any](text string) (T, error) {
	var out T
	for _, candidate := range jsonCandidates(text) {
		if err := json.Unmarshal([]byte(candidate), &out); err == nil {
			return out, nil
		}
		out = *new(T)
	}
	return out, fmt.Errorf("%w: %.120q", ErrNoJSON, text)
}

func jsonCandidates(text string) []string {
	text = strings.TrimSpace(text)
	candidates := []string{text}

	if _, rest, ok := strings.Cut(text, "```"); ok {
		if body, _, ok := strings.Cut(rest, "```"); ok {
			body = strings.TrimPrefix(body, "json")
			candidates = append(candidates, strings.TrimSpace(body))
		}
	}

	if start := strings.IndexAny(text, "{["); start >= 0 {
		if end := strings.LastIndexAny(text, "}]"); end > start {
			candidates = append(candidates, text[start:end+1])
		}
	}
	return candidates
}
