package extractor

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"docex/internal/model"
)

var (
	reFencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	reFenced     = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
	reBraces     = regexp.MustCompile(`(?s)\{.*\}`)
)

// parseObject recovers a JSON object from free model text.
// It tries, in order: the whole text, a ```json block, any fenced block and the
// widest brace span. An empty map is returned when nothing parses.
func parseObject(text string) map[string]any {
	candidates := []string{text}
	if m := reFencedJSON.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := reFenced.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := reBraces.FindString(text); m != "" {
		candidates = append(candidates, m)
	}

	for _, c := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(c)), &obj); err == nil && obj != nil {
			return obj
		}
	}
	return map[string]any{}
}

// buildResult splits document_type out of the parsed object and normalizes every
// remaining value to a nullable string.
func buildResult(raw string) *model.ExtractionResult {
	obj := parseObject(raw)

	res := &model.ExtractionResult{
		Fields:      make(map[string]*string, len(obj)),
		RawResponse: raw,
	}
	if dt, ok := obj["document_type"]; ok {
		res.DocumentType = stringify(dt)
		delete(obj, "document_type")
	}
	for k, v := range obj {
		res.Fields[k] = stringify(v)
	}
	return res
}

func stringify(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return &t
	case bool:
		s := strconv.FormatBool(t)
		return &s
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		s := string(b)
		return &s
	}
}
