package sqlgen

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	fenceRe     = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")
	selectRe    = regexp.MustCompile(`(?i)\bselect\b`)
	forbiddenRe = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|attach|pragma|vacuum|reindex|replace|truncate)\b`)
	limitRe     = regexp.MustCompile(`(?i)\blimit\s+\d+`)
)

// stripFences unwraps a markdown code fence when the model answered with one.
func stripFences(raw string) string {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// extractStatement cuts the window from the first SELECT to the first
// semicolon. An empty window — no SELECT at all, or a semicolon terminating
// some other statement before the first SELECT — means the model produced
// nothing usable.
func extractStatement(raw string) (string, bool) {
	text := stripFences(raw)

	loc := selectRe.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	if semi := strings.Index(text, ";"); semi >= 0 && semi < loc[0] {
		return "", false
	}

	stmt := text[loc[0]:]
	if semi := strings.Index(stmt, ";"); semi >= 0 {
		stmt = stmt[:semi]
	}
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return "", false
	}
	return stmt, true
}

// Validate applies the safety rules to the raw model output and returns the
// executable statement, or a Rejected outcome.
func Validate(raw string) (string, *Outcome) {
	stmt, ok := extractStatement(raw)
	if !ok {
		return "", rejectedOutcome(strings.TrimSpace(raw), ReasonNoSelect)
	}
	if forbiddenRe.MatchString(stmt) {
		return "", rejectedOutcome(stmt, ReasonForbiddenKeyword)
	}
	// Extraction already cut at the first semicolon, so a remaining one
	// can only mean the input smuggled statements past the window.
	if strings.Contains(stmt, ";") {
		return "", rejectedOutcome(stmt, ReasonMultipleStmts)
	}
	return stmt, nil
}

// InjectLimit appends a LIMIT when the statement carries none. Always applied:
// the model is not trusted to bound result sizes.
func InjectLimit(stmt string, limit int) string {
	if limitRe.MatchString(stmt) {
		return stmt
	}
	if limit <= 0 {
		limit = 100
	}
	return stmt + " LIMIT " + strconv.Itoa(limit)
}
