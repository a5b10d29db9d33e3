package validate

import (
	"fmt"
	"strings"
)

// SmokeResult is the outcome of a best-effort load check. Failure is
// advisory: it feeds the repair loop but never blocks acceptance on its own.
type SmokeResult struct {
	Success bool     `json:"success"`
	Issues  []string `json:"issues"`
}

// Smoke performs a structural load check on widget code without executing
// it: bracket balance outside strings and comments, unterminated literals,
// await outside async, and duplicate default exports.
func Smoke(code string) SmokeResult {
	result := SmokeResult{Success: true}

	if strings.TrimSpace(code) == "" {
		return SmokeResult{Issues: []string{"code is empty"}}
	}

	if issues := scanBrackets(code); len(issues) > 0 {
		result.Issues = append(result.Issues, issues...)
	}

	if n := strings.Count(code, "export default"); n > 1 {
		result.Issues = append(result.Issues, fmt.Sprintf("found %d default exports, expected 1", n))
	}

	if awaitOutsideAsync(code) {
		result.Issues = append(result.Issues, "top-level await outside an async function")
	}

	result.Success = len(result.Issues) == 0
	return result
}

// scanBrackets walks the code tracking string/template/comment state and
// checks that (), {}, [] nest correctly in actual code.
func scanBrackets(code string) []string {
	var issues []string
	var stack []byte

	const (
		stCode = iota
		stSingle
		stDouble
		stTemplate
		stRegex
		stLineComment
		stBlockComment
	)
	state := stCode
	// Each ${ interpolation records the bracket depth at entry; its closing
	// } is the one that returns the stack to that depth.
	var interpStack []int
	templateDepth := 0
	regexInClass := false
	// Last significant code byte, used to tell a regex literal from a
	// division operator.
	var prev byte

	line := 1
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c == '\n' {
			line++
		}
		var next byte
		if i+1 < len(code) {
			next = code[i+1]
		}

		switch state {
		case stCode:
			switch {
			case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			case c == '/' && next == '/':
				state = stLineComment
				i++
			case c == '/' && next == '*':
				state = stBlockComment
				i++
			case c == '/' && regexCanStart(prev):
				state = stRegex
				regexInClass = false
			case c == '\'':
				state = stSingle
			case c == '"':
				state = stDouble
			case c == '`':
				state = stTemplate
				templateDepth++
			case c == '(' || c == '{' || c == '[':
				stack = append(stack, c)
				prev = c
			case c == ')' || c == '}' || c == ']':
				prev = c
				if c == '}' && len(interpStack) > 0 && len(stack) == interpStack[len(interpStack)-1] {
					// Close of a template interpolation
					interpStack = interpStack[:len(interpStack)-1]
					state = stTemplate
					continue
				}
				if len(stack) == 0 {
					issues = append(issues, fmt.Sprintf("unmatched '%c' at line %d", c, line))
					continue
				}
				open := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if !bracketsMatch(open, c) {
					issues = append(issues, fmt.Sprintf("mismatched '%c' at line %d (open '%c')", c, line, open))
				}
			default:
				prev = c
			}
		case stSingle:
			if c == '\\' {
				i++
			} else if c == '\'' {
				state = stCode
				prev = c
			} else if c == '\n' {
				issues = append(issues, fmt.Sprintf("unterminated string at line %d", line-1))
				state = stCode
			}
		case stDouble:
			if c == '\\' {
				i++
			} else if c == '"' {
				state = stCode
				prev = c
			} else if c == '\n' {
				issues = append(issues, fmt.Sprintf("unterminated string at line %d", line-1))
				state = stCode
			}
		case stTemplate:
			if c == '\\' {
				i++
			} else if c == '`' {
				state = stCode
				prev = c
				if templateDepth > 0 {
					templateDepth--
				}
			} else if c == '$' && next == '{' {
				interpStack = append(interpStack, len(stack))
				state = stCode
				prev = '{'
				i++
			}
		case stRegex:
			if c == '\\' {
				i++
			} else if c == '[' {
				regexInClass = true
			} else if c == ']' {
				regexInClass = false
			} else if c == '/' && !regexInClass {
				state = stCode
				prev = c
			} else if c == '\n' {
				// Regex literals cannot span lines; the slash was division.
				state = stCode
			}
		case stLineComment:
			if c == '\n' {
				state = stCode
			}
		case stBlockComment:
			if c == '*' && next == '/' {
				state = stCode
				i++
			}
		}
	}

	switch state {
	case stTemplate:
		issues = append(issues, "unterminated template literal")
	case stSingle, stDouble:
		issues = append(issues, "unterminated string literal")
	case stRegex:
		issues = append(issues, "unterminated regular expression")
	case stBlockComment:
		issues = append(issues, "unterminated block comment")
	}
	if state == stCode && len(interpStack) > 0 {
		issues = append(issues, "unterminated template literal")
	}
	for _, open := range stack {
		issues = append(issues, fmt.Sprintf("unclosed '%c'", open))
	}
	return issues
}

// regexCanStart reports whether a '/' begins a regex literal rather than a
// division operator, judged by the preceding significant byte. A slash after
// an operand (identifier, number, closing bracket, string) is division.
func regexCanStart(prev byte) bool {
	switch prev {
	case 0, '(', '[', '{', ',', ';', '=', ':', '!', '&', '|', '?', '+', '-', '*', '%', '<', '>', '~', '^':
		return true
	}
	return false
}

func bracketsMatch(open, close byte) bool {
	switch open {
	case '(':
		return close == ')'
	case '{':
		return close == '}'
	case '[':
		return close == ']'
	}
	return false
}

// awaitOutsideAsync reports a top-level await when the default export is not
// an async function. Coarse: nested functions are not tracked.
func awaitOutsideAsync(code string) bool {
	if !strings.Contains(code, "await ") {
		return false
	}
	return !strings.Contains(code, "async function") && !strings.Contains(code, "async (") && !strings.Contains(code, "async(")
}
