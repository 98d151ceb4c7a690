package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Dialect names the schema subset a provider accepts.
type Dialect string

const (
	DialectOpenAI Dialect = "openai"
	DialectGemini Dialect = "gemini"
)

// allowedKeys lists the schema keywords each dialect accepts. Anything else
// is dropped by SanitizeSchema.
var allowedKeys = map[Dialect]map[string]bool{
	DialectOpenAI: set("type", "properties", "required", "items", "enum", "description",
		"additionalProperties", "anyOf", "minItems", "maxItems"),
	DialectGemini: set("type", "properties", "required", "items", "enum", "description",
		"nullable", "format", "minItems", "maxItems", "propertyOrdering"),
}

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

// SanitizeSchema returns a copy of schema holding only keywords the dialect
// accepts. For the OpenAI strict mode every object gets
// additionalProperties=false. The input is not modified.
func SanitizeSchema(schema map[string]any, d Dialect) map[string]any {
	if schema == nil {
		return nil
	}
	allow, ok := allowedKeys[d]
	if !ok {
		allow = allowedKeys[DialectOpenAI]
		d = DialectOpenAI
	}
	return sanitizeNode(schema, d, allow)
}

func sanitizeNode(node map[string]any, d Dialect, allow map[string]bool) map[string]any {
	out := make(map[string]any, len(node))
	for k, v := range node {
		if !allow[k] {
			continue
		}
		switch k {
		case "properties":
			props, ok := v.(map[string]any)
			if !ok {
				continue
			}
			clean := make(map[string]any, len(props))
			for name, p := range props {
				if pm, ok := p.(map[string]any); ok {
					clean[name] = sanitizeNode(pm, d, allow)
				}
			}
			out[k] = clean
		case "items":
			if im, ok := v.(map[string]any); ok {
				out[k] = sanitizeNode(im, d, allow)
			}
		case "anyOf":
			list, ok := v.([]any)
			if !ok {
				continue
			}
			clean := make([]any, 0, len(list))
			for _, item := range list {
				if im, ok := item.(map[string]any); ok {
					clean = append(clean, sanitizeNode(im, d, allow))
				}
			}
			out[k] = clean
		case "type":
			if d == DialectGemini {
				if s, ok := v.(string); ok {
					out[k] = strings.ToUpper(s)
					continue
				}
			}
			out[k] = v
		default:
			out[k] = v
		}
	}
	if d == DialectOpenAI && isObject(node) {
		out["additionalProperties"] = false
	}
	return out
}

func isObject(node map[string]any) bool {
	t, _ := node["type"].(string)
	return t == "object"
}

// ValidateDocument checks doc against schema and reports every violation.
func ValidateDocument(schema map[string]any, doc map[string]any) error {
	res, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: schema validation: %w", ErrInvalidResponse, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(msgs, "; "))
}
