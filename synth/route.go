package synth

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/vitalvas/autodoc/openapi"
)

// pathVarRegexp matches route variables in the form {name}, {name:pattern}
// or {name...}.
var pathVarRegexp = regexp.MustCompile(`\{([^}]+)\}`)

// duplicateSlashRegexp matches runs of path separators.
var duplicateSlashRegexp = regexp.MustCompile(`/{2,}`)

// Route is the identity of one observed operation.
type Route struct {
	// URI is the normalized path template, always prefixed with the base path.
	URI string

	// Method is the lower-case HTTP method used as the path item key.
	Method string

	// Action namespaces generated shared schemas, e.g. "Users" for /api/users.
	Action string

	// RequestType is the bound request type name, empty when the handler
	// does not declare one.
	RequestType string
}

// routeClassifier resolves exchanges to routes relative to a base path.
type routeClassifier struct {
	base []string // base path segments
}

func newRouteClassifier(basePath string) routeClassifier {
	return routeClassifier{base: splitPath(basePath)}
}

// classify resolves the route identity of an exchange.
func (c routeClassifier) classify(ex *Exchange) Route {
	uri := c.uriTemplate(ex.Pattern)
	return Route{
		URI:         uri,
		Method:      strings.ToLower(ex.Method),
		Action:      c.actionName(uri),
		RequestType: boundRequestType(ex.BoundTypes),
	}
}

// uriTemplate strips the base path from the matched pattern and re-prefixes
// it canonically, so every template starts with the base path exactly once.
func (c routeClassifier) uriTemplate(pattern string) string {
	segments := splitPath(normalizePattern(pattern))
	if hasPrefixSegments(segments, c.base) {
		segments = segments[len(c.base):]
	}

	var b strings.Builder
	for _, s := range c.base {
		b.WriteString("/")
		b.WriteString(s)
	}
	b.WriteString("/")
	b.WriteString(strings.Join(segments, "/"))

	uri := duplicateSlashRegexp.ReplaceAllString(b.String(), "/")
	if len(uri) > 1 {
		uri = strings.TrimSuffix(uri, "/")
	}
	return uri
}

// actionName concatenates the capitalized segments of uri that follow the
// base path. Placeholders contribute their variable name.
func (c routeClassifier) actionName(uri string) string {
	segments := splitPath(uri)
	if hasPrefixSegments(segments, c.base) {
		segments = segments[len(c.base):]
	}

	var b strings.Builder
	for _, s := range segments {
		b.WriteString(studly(s))
	}
	return b.String()
}

// tag returns the tag an operation is grouped under: the first literal
// segment after the base path, falling back to the last base segment.
func (c routeClassifier) tag(uri string) string {
	segments := splitPath(uri)
	if hasPrefixSegments(segments, c.base) {
		segments = segments[len(c.base):]
	}
	for _, s := range segments {
		if !strings.HasPrefix(s, "{") {
			return s
		}
	}
	if len(c.base) > 0 {
		return c.base[len(c.base)-1]
	}
	return ""
}

// normalizePattern reduces a router pattern to an OpenAPI path template:
// the method and host of a net/http.ServeMux pattern are dropped, variables
// lose their regexp or wildcard suffix, and the {$} end anchor is removed.
func normalizePattern(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if method, rest, ok := strings.Cut(pattern, " "); ok && method != "" && !strings.Contains(method, "/") {
		pattern = strings.TrimSpace(rest)
	}
	if i := strings.Index(pattern, "/"); i > 0 {
		pattern = pattern[i:]
	}

	return pathVarRegexp.ReplaceAllStringFunc(pattern, func(match string) string {
		inner := match[1 : len(match)-1]
		if inner == "$" {
			return ""
		}
		name, _, _ := strings.Cut(inner, ":")
		name = strings.TrimSuffix(name, "...")
		return "{" + name + "}"
	})
}

// pathParameters derives the required path parameters of a URI template.
func pathParameters(uri string) []*openapi.Parameter {
	matches := pathVarRegexp.FindAllStringSubmatch(uri, -1)
	params := make([]*openapi.Parameter, 0, len(matches))
	for _, m := range matches {
		params = append(params, &openapi.Parameter{
			In:       "path",
			Name:     m[1],
			Required: true,
			Type:     "string",
		})
	}
	return params
}

// boundRequestType returns the first type name ending in "Request".
func boundRequestType(types []string) string {
	for _, t := range types {
		if strings.HasSuffix(t, "Request") {
			return t
		}
	}
	return ""
}

// requestSummary turns a request type name into lower-case words:
// "CreateUserRequest" becomes "create user request".
func requestSummary(typeName string) string {
	if i := strings.LastIndexAny(typeName, "./"); i >= 0 {
		typeName = typeName[i+1:]
	}

	var words []string
	runes := []rune(typeName)
	start := 0
	for i := 1; i <= len(runes); i++ {
		if i < len(runes) && !wordBoundary(runes, i) {
			continue
		}
		if word := strings.Trim(string(runes[start:i]), "_"); word != "" {
			words = append(words, strings.ToLower(word))
		}
		start = i
	}
	return strings.Join(words, " ")
}

// wordBoundary reports whether a new word starts at runes[i]. Acronyms stay
// together: "HTTPRequest" splits into "HTTP" and "Request".
func wordBoundary(runes []rune, i int) bool {
	cur, prev := runes[i], runes[i-1]
	if cur == '_' {
		return true
	}
	if !unicode.IsUpper(cur) {
		return false
	}
	if !unicode.IsUpper(prev) {
		return true
	}
	return i+1 < len(runes) && unicode.IsLower(runes[i+1])
}

// studly capitalizes every word of a path segment and drops separators and
// placeholder braces: "user-profiles" becomes "UserProfiles".
func studly(segment string) string {
	var b strings.Builder
	upper := true
	for _, r := range segment {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasPrefixSegments(segments, prefix []string) bool {
	if len(prefix) == 0 || len(segments) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if segments[i] != p {
			return false
		}
	}
	return true
}
