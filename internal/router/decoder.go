package router

import (
	"math"
	"strconv"
	"strings"
)

// Decode splits a raw control line on whitespace and converts every field
// that parses as a finite number into a numeric token. Anything else,
// including NaN and infinities, stays a string. It never fails.
func Decode(line string) []Token {
	fields := strings.Fields(line)
	tokens := make([]Token, 0, len(fields))
	for _, field := range fields {
		tokens = append(tokens, decodeField(field))
	}
	return tokens
}

func decodeField(field string) Token {
	f, err := strconv.ParseFloat(field, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return String(field)
	}
	return Number(f)
}
