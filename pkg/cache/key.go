package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CallContext carries the request-scoped values key templates resolve
// against. Maps may be nil; absent values render as empty strings.
type CallContext struct {
	// Params holds path parameters.
	Params map[string]any

	// Query holds query-string values.
	Query map[string]any

	// Body holds decoded request-body fields.
	Body map[string]any

	// User holds authenticated principal attributes.
	User map[string]any

	// Tenant is the tenant identifier for key scoping.
	Tenant string
}

// KeyTemplate is a compiled cache-key template. Templates mix literal
// text with placeholders of the form {param.id}, {query.page},
// {body.email}, {user.sub} and the bare {tenant}.
type KeyTemplate struct {
	raw      string
	segments []segment
}

// segment is either a literal (source empty) or a placeholder.
type segment struct {
	literal string
	source  string
	field   string
}

var templateSources = map[string]bool{
	"param": true,
	"query": true,
	"body":  true,
	"user":  true,
}

// ParseKeyTemplate compiles a template string. Unknown placeholder
// sources and malformed braces are configuration errors and fail here
// rather than at resolution time.
func ParseKeyTemplate(raw string) (*KeyTemplate, error) {
	if raw == "" {
		return nil, errors.New("empty key template")
	}

	t := &KeyTemplate{raw: raw}
	rest := raw
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			t.segments = append(t.segments, segment{literal: rest})
			break
		}
		if open > 0 {
			t.segments = append(t.segments, segment{literal: rest[:open]})
		}

		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unclosed placeholder in key template %q", raw)
		}
		placeholder := rest[open+1 : open+end]
		rest = rest[open+end+1:]

		if placeholder == "tenant" {
			t.segments = append(t.segments, segment{source: "tenant"})
			continue
		}

		source, field, ok := strings.Cut(placeholder, ".")
		if !ok || field == "" {
			return nil, fmt.Errorf("malformed placeholder %q in key template %q", placeholder, raw)
		}
		if !templateSources[source] {
			return nil, fmt.Errorf("unknown placeholder source %q in key template %q", source, raw)
		}
		t.segments = append(t.segments, segment{source: source, field: field})
	}

	return t, nil
}

// MustKeyTemplate parses raw and panics on error. For package-level
// template variables.
func MustKeyTemplate(raw string) *KeyTemplate {
	t, err := ParseKeyTemplate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the original template text.
func (t *KeyTemplate) String() string {
	return t.raw
}

// Resolve renders the template against cc.
func (t *KeyTemplate) Resolve(cc CallContext) string {
	var b strings.Builder
	for _, seg := range t.segments {
		switch seg.source {
		case "":
			b.WriteString(seg.literal)
		case "tenant":
			b.WriteString(cc.Tenant)
		default:
			b.WriteString(stringify(cc.lookup(seg.source, seg.field)))
		}
	}
	return b.String()
}

func (cc CallContext) lookup(source, field string) any {
	var m map[string]any
	switch source {
	case "param":
		m = cc.Params
	case "query":
		m = cc.Query
	case "body":
		m = cc.Body
	case "user":
		m = cc.User
	}
	if m == nil {
		return nil
	}
	return m[field]
}

// stringify renders template values. JSON-decoded numbers arrive as
// float64 and must not render in exponent notation.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// FallbackKey builds the cache key used when no template is configured:
// the target name joined with canonical JSON renderings of the path and
// query values. Map keys marshal in sorted order, so equal inputs produce
// equal keys across processes.
func FallbackKey(target string, cc CallContext) string {
	return target + ":" + canonical(cc.Params) + ":" + canonical(cc.Query)
}

// canonical renders m as JSON with sorted keys. Values JSON cannot
// represent fall back to fmt's map rendering, which also sorts keys,
// so distinct contexts still produce distinct keys.
func canonical(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("%v", m)
	}
	return string(b)
}
