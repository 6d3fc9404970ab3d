package extraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lexlapax/recall/pkg/mem/ltm"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind tags the result of parsing a completer response.
type Kind int

const (
	// Empty means the model had nothing to remember
	Empty Kind = iota

	// Extracted means at least one item was found
	Extracted

	// ParseFailure means the response was not a JSON array of objects
	ParseFailure
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Extracted:
		return "extracted"
	case ParseFailure:
		return "parse_failure"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of an extraction.
type Outcome struct {
	Kind Kind

	// Facts holds the usable items, in response order
	Facts []ltm.Fact

	// Dropped counts items missing a key or a value
	Dropped int

	// Raw is the completer response as received
	Raw string
}

const responseSchemaURL = "recall://extraction/response.json"

// responseSchema checks the top-level shape only. Individual items without a
// key or value are dropped later rather than failing the whole response.
const responseSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {"type": "object"}
}`

var compiledSchema = jsonschema.MustCompileString(responseSchemaURL, responseSchema)

// Parse interprets a completer response. It strips code fences, locates the
// JSON array, validates its shape and collects every item that has both a
// key and a value. It never returns an error; malformed input yields a
// ParseFailure outcome carrying the raw text. A top-level object is a
// ParseFailure even when it wraps an array.
func Parse(raw string) Outcome {
	stripped := stripCodeFences(raw)
	if strings.HasPrefix(stripped, "{") {
		return Outcome{Kind: ParseFailure, Raw: raw}
	}

	body, ok := locateArray(stripped)
	if !ok {
		return Outcome{Kind: ParseFailure, Raw: raw}
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return Outcome{Kind: ParseFailure, Raw: raw}
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return Outcome{Kind: ParseFailure, Raw: raw}
	}

	items := doc.([]interface{})
	if len(items) == 0 {
		return Outcome{Kind: Empty, Raw: raw}
	}

	outcome := Outcome{Kind: Extracted, Raw: raw}
	for _, item := range items {
		obj := item.(map[string]interface{})
		fact := ltm.Fact{
			Key:      scalarString(obj["key"]),
			Value:    scalarString(obj["value"]),
			Category: scalarString(obj["category"]),
		}.Normalize()

		if fact.Key == "" || fact.Value == "" {
			outcome.Dropped++
			continue
		}
		outcome.Facts = append(outcome.Facts, fact)
	}
	return outcome
}

// stripCodeFences removes markdown fences such as ```json ... ```.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the opening fence line including any language tag
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// locateArray returns the text between the first '[' and the last ']', so
// prose around a bare array is tolerated.
func locateArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// scalarString renders strings, numbers and booleans; anything else is
// treated as missing.
func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// String summarizes the outcome for logs and the CLI.
func (o Outcome) String() string {
	switch o.Kind {
	case Extracted:
		return fmt.Sprintf("%s (%d facts, %d dropped)", o.Kind, len(o.Facts), o.Dropped)
	default:
		return o.Kind.String()
	}
}
