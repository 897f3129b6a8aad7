// Package vtl evaluates the mapping template vocabulary emitted by the
// mapping package: $input.json/$input.path selections, $context variables,
// $util.escapeJavaScript, #set assignments, and #if/#else/#end branching,
// including the $context.responseOverride.status assignment used to force a
// different HTTP status at render time.
//
// This is not a general Velocity implementation. It covers exactly the
// directives and references the generated templates use, and it returns an
// error for anything malformed instead of panicking.
package vtl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/flowgate/flowgate/jsonutil"
)

var (
	// ErrTemplate reports a directive or reference the engine cannot parse.
	ErrTemplate = errors.New("malformed template")
	// ErrInput reports evaluation input that cannot back the template, such
	// as a non-JSON document behind $input.
	ErrInput = errors.New("invalid template input")
)

// Input carries the documents a template renders against: the raw payload
// behind $input and the variables behind $context, keyed by dotted path
// (for example "identity.sourceIp").
type Input struct {
	Body    []byte
	Context map[string]string
}

// Output is the rendered template text plus the HTTP status override set by
// the template, zero when the template did not override the status.
type Output struct {
	Body           string
	StatusOverride int
}

// Render evaluates the template against in.
func Render(template string, in Input) (Output, error) {
	r := &renderer{
		context: in.Context,
		body:    in.Body,
		vars:    make(map[string]any),
	}
	return r.render(template)
}

type renderer struct {
	context map[string]string
	body    []byte
	vars    map[string]any

	doc       any
	docErr    error
	docParsed bool

	statusOverride int
	frames         []frame
}

// frame tracks one #if/#else level.
type frame struct {
	parentActive bool
	branchTaken  bool
	active       bool
}

func (r *renderer) render(template string) (Output, error) {
	var out []string
	for _, line := range strings.Split(template, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#set("):
			if err := r.execSet(trimmed); err != nil {
				return Output{}, err
			}
		case strings.HasPrefix(trimmed, "#if("):
			if err := r.execIf(trimmed); err != nil {
				return Output{}, err
			}
		case trimmed == "#else":
			if err := r.execElse(); err != nil {
				return Output{}, err
			}
		case trimmed == "#end":
			if err := r.execEnd(); err != nil {
				return Output{}, err
			}
		default:
			if !r.active() {
				continue
			}
			rendered, err := r.interpolate(line)
			if err != nil {
				return Output{}, err
			}
			out = append(out, rendered)
		}
	}

	if len(r.frames) != 0 {
		return Output{}, fmt.Errorf("%w: unterminated #if", ErrTemplate)
	}

	return Output{
		Body:           strings.TrimSpace(strings.Join(out, "\n")),
		StatusOverride: r.statusOverride,
	}, nil
}

func (r *renderer) active() bool {
	for _, f := range r.frames {
		if !f.active {
			return false
		}
	}
	return true
}

func (r *renderer) execSet(line string) error {
	if !r.active() {
		return nil
	}
	sc := &scanner{src: line, pos: len("#set(")}
	sc.skipSpaces()
	if !sc.consume('$') {
		return fmt.Errorf("%w: #set target must be a reference: %s", ErrTemplate, line)
	}
	name := sc.readIdent()
	if name == "" {
		return fmt.Errorf("%w: #set target missing name: %s", ErrTemplate, line)
	}

	if name == "context" {
		if !sc.literal(".responseOverride.status") {
			return fmt.Errorf("%w: unsupported context assignment: %s", ErrTemplate, line)
		}
		val, err := r.assignedValue(sc, line)
		if err != nil {
			return err
		}
		status, err := toStatus(val)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrTemplate, line)
		}
		r.statusOverride = status
		return nil
	}

	val, err := r.assignedValue(sc, line)
	if err != nil {
		return err
	}
	r.vars[name] = val
	return nil
}

func (r *renderer) assignedValue(sc *scanner, line string) (any, error) {
	sc.skipSpaces()
	if !sc.consume('=') {
		return nil, fmt.Errorf("%w: #set missing assignment: %s", ErrTemplate, line)
	}
	val, err := r.parseExpression(sc)
	if err != nil {
		return nil, err
	}
	sc.skipSpaces()
	if !sc.consume(')') {
		return nil, fmt.Errorf("%w: #set missing closing parenthesis: %s", ErrTemplate, line)
	}
	return val, nil
}

func (r *renderer) execIf(line string) error {
	parent := r.active()
	if !parent {
		// Track nesting without evaluating the condition.
		r.frames = append(r.frames, frame{})
		return nil
	}

	sc := &scanner{src: line, pos: len("#if(")}
	val, err := r.parseExpression(sc)
	if err != nil {
		return err
	}
	sc.skipSpaces()
	if !sc.consume(')') {
		return fmt.Errorf("%w: #if missing closing parenthesis: %s", ErrTemplate, line)
	}

	cond := truthy(val)
	r.frames = append(r.frames, frame{parentActive: parent, branchTaken: cond, active: cond})
	return nil
}

func (r *renderer) execElse() error {
	if len(r.frames) == 0 {
		return fmt.Errorf("%w: #else without #if", ErrTemplate)
	}
	top := &r.frames[len(r.frames)-1]
	top.active = top.parentActive && !top.branchTaken
	top.branchTaken = true
	return nil
}

func (r *renderer) execEnd() error {
	if len(r.frames) == 0 {
		return fmt.Errorf("%w: #end without #if", ErrTemplate)
	}
	r.frames = r.frames[:len(r.frames)-1]
	return nil
}

// interpolate replaces every resolvable reference in line with its rendered
// text. Unresolvable references are left verbatim, matching the quiet
// behaviour of the platform renderer.
func (r *renderer) interpolate(line string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(line) {
		if line[i] != '$' || i+1 >= len(line) || !isIdentStart(line[i+1]) {
			b.WriteByte(line[i])
			i++
			continue
		}

		sc := &scanner{src: line, pos: i}
		val, ok, err := r.parseReference(sc)
		if err != nil {
			return "", err
		}
		if ok {
			b.WriteString(textOf(val))
		} else {
			b.WriteString(line[i:sc.pos])
		}
		i = sc.pos
	}
	return b.String(), nil
}

// parseExpression handles primaries joined by == or !=.
func (r *renderer) parseExpression(sc *scanner) (any, error) {
	left, err := r.parsePrimary(sc)
	if err != nil {
		return nil, err
	}

	sc.skipSpaces()
	if sc.literal("==") {
		right, err := r.parsePrimary(sc)
		if err != nil {
			return nil, err
		}
		return textOf(left) == textOf(right), nil
	}
	if sc.literal("!=") {
		right, err := r.parsePrimary(sc)
		if err != nil {
			return nil, err
		}
		return textOf(left) != textOf(right), nil
	}
	return left, nil
}

func (r *renderer) parsePrimary(sc *scanner) (any, error) {
	sc.skipSpaces()
	switch {
	case sc.eof():
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrTemplate)
	case sc.peek() == '\'' || sc.peek() == '"':
		lit, err := sc.readString()
		if err != nil {
			return nil, err
		}
		return lit, nil
	case sc.peek() == '$':
		val, ok, err := r.parseReference(sc)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return val, nil
	case sc.literal("true"):
		return true, nil
	case sc.literal("false"):
		return false, nil
	case isDigit(sc.peek()) || sc.peek() == '-':
		return sc.readNumber()
	default:
		return nil, fmt.Errorf("%w: unexpected expression at %q", ErrTemplate, sc.rest())
	}
}

// parseReference parses a $reference with its selector and method chain.
// The boolean reports whether the reference resolved; unresolved references
// keep their source text when interpolated.
func (r *renderer) parseReference(sc *scanner) (any, bool, error) {
	if !sc.consume('$') {
		return nil, false, fmt.Errorf("%w: expected reference at %q", ErrTemplate, sc.rest())
	}
	name := sc.readIdent()
	if name == "" {
		return nil, false, fmt.Errorf("%w: reference missing name", ErrTemplate)
	}

	var val any
	resolved := true

	switch name {
	case "input":
		v, ok, err := r.parseInputSelector(sc)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		val = v
	case "util":
		if !sc.literal(".escapeJavaScript(") {
			return nil, false, nil
		}
		inner, err := r.parseExpression(sc)
		if err != nil {
			return nil, false, err
		}
		if !sc.consume(')') {
			return nil, false, fmt.Errorf("%w: escapeJavaScript missing closing parenthesis", ErrTemplate)
		}
		val = escapeJavaScript(textOf(inner))
	case "context":
		path := sc.readDottedFields()
		if path == "" {
			return nil, false, nil
		}
		v, ok := r.context[path]
		if !ok {
			resolved = false
		}
		val = v
	default:
		v, ok := r.vars[name]
		if !ok {
			resolved = false
		}
		val = v
	}

	return r.parseChain(sc, val, resolved)
}

// parseInputSelector handles $input.json('path') and $input.path('path').
func (r *renderer) parseInputSelector(sc *scanner) (any, bool, error) {
	asJSON := false
	switch {
	case sc.literal(".json("):
		asJSON = true
	case sc.literal(".path("):
	default:
		return nil, false, nil
	}

	path, err := sc.readString()
	if err != nil {
		return nil, false, err
	}
	if !sc.consume(')') {
		return nil, false, fmt.Errorf("%w: input selector missing closing parenthesis", ErrTemplate)
	}

	val, err := r.inputAt(path)
	if err != nil {
		return nil, false, err
	}
	if asJSON {
		data, err := jsonutil.Marshal(val)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrInput, err)
		}
		return string(data), true, nil
	}
	return val, true, nil
}

// parseChain applies .field selections and the .toString()/.equals() methods
// the generated templates use.
func (r *renderer) parseChain(sc *scanner, val any, resolved bool) (any, bool, error) {
	for {
		start := sc.pos
		if !sc.consume('.') {
			return val, resolved, nil
		}
		ident := sc.readIdent()
		if ident == "" {
			sc.pos = start
			return val, resolved, nil
		}

		if sc.consume('(') {
			switch ident {
			case "toString":
				if !sc.consume(')') {
					return nil, false, fmt.Errorf("%w: toString missing closing parenthesis", ErrTemplate)
				}
				val = textOf(val)
			case "equals":
				arg, err := r.parseExpression(sc)
				if err != nil {
					return nil, false, err
				}
				if !sc.consume(')') {
					return nil, false, fmt.Errorf("%w: equals missing closing parenthesis", ErrTemplate)
				}
				val = textOf(val) == textOf(arg)
			default:
				return nil, false, fmt.Errorf("%w: unsupported method %q", ErrTemplate, ident)
			}
			continue
		}

		// Plain field selection on an object value.
		if m, ok := val.(map[string]any); ok {
			val = m[ident]
		} else {
			val = nil
		}
	}
}

// inputAt navigates the parsed $input document with a '$'-rooted dotted
// path such as $, $.status, or $.output.
func (r *renderer) inputAt(path string) (any, error) {
	if !r.docParsed {
		r.docParsed = true
		if len(r.body) == 0 {
			r.docErr = fmt.Errorf("%w: empty input document", ErrInput)
		} else if err := jsonutil.Unmarshal(r.body, &r.doc); err != nil {
			r.docErr = fmt.Errorf("%w: %v", ErrInput, err)
		}
	}
	if r.docErr != nil {
		return nil, r.docErr
	}

	if path != "$" && !strings.HasPrefix(path, "$.") {
		return nil, fmt.Errorf("%w: unsupported input path %q", ErrTemplate, path)
	}

	val := r.doc
	if path == "$" {
		return val, nil
	}
	for _, field := range strings.Split(path[2:], ".") {
		m, ok := val.(map[string]any)
		if !ok {
			return nil, nil
		}
		val = m[field]
	}
	return val, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	default:
		return true
	}
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		data, err := jsonutil.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func toStatus(v any) (int, error) {
	switch t := v.(type) {
	case float64:
		return int(t), nil
	case int:
		return t, nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("not a status value: %v", v)
	}
}

// escapeJavaScript escapes s so it can be embedded inside a JSON string
// literal: backslashes, double quotes, and control characters are encoded.
// Unlike the platform helper, single quotes are left alone so the emitted
// document stays valid JSON.
func escapeJavaScript(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if c < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, c)
			} else {
				b.WriteRune(c)
			}
		}
	}
	return b.String()
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) consume(c byte) bool {
	if s.eof() || s.src[s.pos] != c {
		return false
	}
	s.pos++
	return true
}

func (s *scanner) literal(lit string) bool {
	if strings.HasPrefix(s.src[s.pos:], lit) {
		s.pos += len(lit)
		return true
	}
	return false
}

func (s *scanner) skipSpaces() {
	for !s.eof() && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
}

func (s *scanner) rest() string {
	return s.src[s.pos:]
}

func (s *scanner) readIdent() string {
	start := s.pos
	for !s.eof() && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	return s.src[start:s.pos]
}

// readDottedFields consumes .a.b.c selectors, stopping before any segment
// that opens a method call so the chain parser can handle it.
func (s *scanner) readDottedFields() string {
	var fields []string
	for {
		start := s.pos
		if !s.consume('.') {
			break
		}
		ident := s.readIdent()
		if ident == "" || s.peek() == '(' {
			s.pos = start
			break
		}
		fields = append(fields, ident)
	}
	return strings.Join(fields, ".")
}

func (s *scanner) readString() (string, error) {
	s.skipSpaces()
	if s.eof() || (s.peek() != '\'' && s.peek() != '"') {
		return "", fmt.Errorf("%w: expected string literal at %q", ErrTemplate, s.rest())
	}
	quote := s.src[s.pos]
	s.pos++
	start := s.pos
	for !s.eof() && s.src[s.pos] != quote {
		s.pos++
	}
	if s.eof() {
		return "", fmt.Errorf("%w: unterminated string literal", ErrTemplate)
	}
	lit := s.src[start:s.pos]
	s.pos++
	return lit, nil
}

func (s *scanner) readNumber() (any, error) {
	start := s.pos
	if s.peek() == '-' {
		s.pos++
	}
	for !s.eof() && (isDigit(s.src[s.pos]) || s.src[s.pos] == '.') {
		s.pos++
	}
	num, err := strconv.ParseFloat(s.src[start:s.pos], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad number literal %q", ErrTemplate, s.src[start:s.pos])
	}
	return num, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
