package cw

import "strings"

// Token is one event of a keyed transmission.
type Token uint8

const (
	// Dit is a short mark.
	Dit Token = iota + 1
	// Dah is a long mark.
	Dah
	// CharGap is a pause long enough to end a character.
	CharGap
	// WordGap is a pause long enough to end a word.
	WordGap
)

// String returns the token name.
func (t Token) String() string {
	switch t {
	case Dit:
		return "dit"
	case Dah:
		return "dah"
	case CharGap:
		return "char-gap"
	case WordGap:
		return "word-gap"
	default:
		return "unknown"
	}
}

// IsMark reports whether the token is a dit or a dah.
func (t Token) IsMark() bool {
	return t == Dit || t == Dah
}

// Stream accumulates the tokens of one transmission together with their
// rendered Morse text. The zero value is an empty stream.
type Stream struct {
	tokens   []Token
	rendered strings.Builder
}

// Append adds a token and returns the text it added to the rendering.
//
// A word gap renders as "/ " after a space and " / " otherwise, so the
// rendering always separates words with " / " whether or not a character
// gap was observed first.
func (s *Stream) Append(t Token) string {
	var frag string
	switch t {
	case Dit:
		frag = "."
	case Dah:
		frag = "-"
	case CharGap:
		frag = CharSeparator
	case WordGap:
		frag = WordSeparator + CharSeparator
		if !strings.HasSuffix(s.rendered.String(), CharSeparator) {
			frag = CharSeparator + frag
		}
	default:
		return ""
	}
	s.tokens = append(s.tokens, t)
	s.rendered.WriteString(frag)
	return frag
}

// Tokens returns a copy of the buffered tokens.
func (s *Stream) Tokens() []Token {
	out := make([]Token, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// Len returns the number of buffered tokens.
func (s *Stream) Len() int {
	return len(s.tokens)
}

// String returns the rendered Morse text.
func (s *Stream) String() string {
	return s.rendered.String()
}

// Flush returns the rendered text and empties the stream.
func (s *Stream) Flush() string {
	out := s.rendered.String()
	s.tokens = s.tokens[:0]
	s.rendered.Reset()
	return out
}

// Render renders a token sequence the same way a Stream does.
func Render(tokens []Token) string {
	var s Stream
	for _, t := range tokens {
		s.Append(t)
	}
	return s.String()
}
