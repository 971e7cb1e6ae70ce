// internal/cw/morse.go
// Package cw implements Morse code classification, translation and table rendering.
package cw

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Separators used in rendered Morse text.
const (
	// CharSeparator separates character codes within a word.
	CharSeparator = " "
	// WordSeparator separates words.
	WordSeparator = "/"
)

// symbols and codes are parallel: codes[i] is the Morse code of symbols[i].
var (
	symbols = [...]rune{
		'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M',
		'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z',
		'1', '2', '3', '4', '5', '6', '7', '8', '9', '0',
	}
	codes = [...]string{
		".-", "-...", "-.-.", "-..", ".", "..-.", "--.", "....", "..", ".---", "-.-", ".-..", "--",
		"-.", "---", ".--.", "--.-", ".-.", "...", "-", "..-", "...-", ".--", "-..-", "-.--", "--..",
		".----", "..---", "...--", "....-", ".....", "-....", "--...", "---..", "----.", "-----",
	}
)

// Lookup indexes, built once at package initialisation and never written afterwards.
var (
	codeToSymbol = make(map[string]rune, len(codes))
	symbolToCode = make(map[rune]string, len(symbols))
)

func init() {
	for i, r := range symbols {
		codeToSymbol[codes[i]] = r
		symbolToCode[r] = codes[i]
	}
}

// Symbols returns the supported symbols in table order (A-Z, then 1-9, then 0).
func Symbols() []rune {
	out := make([]rune, len(symbols))
	copy(out, symbols[:])
	return out
}

// CodeFor returns the Morse code for an upper-case letter or digit.
func CodeFor(r rune) (string, bool) {
	code, ok := symbolToCode[r]
	return code, ok
}

// SymbolFor returns the symbol encoded by a Morse code.
func SymbolFor(code string) (rune, bool) {
	r, ok := codeToSymbol[code]
	return r, ok
}

// Decode converts rendered Morse text into upper-case text.
//
// Words are separated by "/" and character codes by single spaces. Codes that
// are not in the table (including empty codes produced by repeated spaces)
// are skipped. A single space is written after every word except the last,
// even when a word decodes to nothing, so "... /" decodes to "S ".
func Decode(morse string) string {
	words := strings.Split(morse, WordSeparator)

	var b strings.Builder
	for i, word := range words {
		for _, code := range strings.Split(word, CharSeparator) {
			if r, ok := codeToSymbol[code]; ok {
				b.WriteRune(r)
			}
		}
		if i < len(words)-1 {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// Encode converts text into rendered Morse text.
//
// Letters are matched case-insensitively using full Unicode case mapping, so
// "ß" encodes as "SS", and a space becomes "/". Every other
// rune produces no code but still takes its separator slot: one space is
// written after each rune except the last, so "A,B" encodes to ".-  -...".
func Encode(text string) string {
	runes := []rune(upper(text))

	var b strings.Builder
	for i, r := range runes {
		if code, ok := symbolToCode[r]; ok {
			b.WriteString(code)
		}
		if r == ' ' {
			b.WriteString(WordSeparator)
		}
		if i < len(runes)-1 {
			b.WriteString(CharSeparator)
		}
	}
	return b.String()
}

// IsEncodable reports whether r has a Morse code or is a word separator.
// A rune whose upper case is several letters is encodable if all of them are.
func IsEncodable(r rune) bool {
	if r == ' ' {
		return true
	}
	for _, u := range upper(string(r)) {
		if _, ok := symbolToCode[u]; !ok {
			return false
		}
	}
	return true
}

// upper applies full case mapping. A Caser is not safe for concurrent use,
// so one is made per call.
func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}
