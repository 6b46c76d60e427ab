// Package wildcard parses query tokens that carry wildcard markers and expands
// them into literal candidate readings.
//
// A token is parsed once into a Pattern. Markers:
//
//	[abc]  bracket class, one of the listed characters
//	C      any member of the consonant set
//	&x     leading: accent and subscript variants of the first vowel
//	$x     leading: every alternate reading of the sign behind x
//
// Expansion is applied in the fixed order bracket, consonant, vowel. The
// alternate-reading marker is not expanded here; it is carried on the
// Expansion for the resolver.
package wildcard

import (
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/normalize"
	apperrors "github.com/Adithya-Monish-Kumar-K/translit-search/pkg/errors"
)

const (
	MarkerVowel     = '&'
	MarkerAlternate = '$'
	MarkerConsonant = 'C'
)

// Consonants is the set a C marker ranges over.
var Consonants = []string{
	"b", "d", "g", "ĝ", "h", "ḫ", "k", "l", "m", "n", "p", "q", "r", "s", "ṣ", "š", "t", "ṭ", "w", "y", "z", "ʾ",
	"B", "D", "G", "Ĝ", "H", "Ḫ", "K", "L", "M", "N", "P", "Q", "R", "S", "Ṣ", "Š", "T",
}

// vowelClasses maps every vowel to its accent class; the first member is the
// unaccented form.
var vowelClasses = map[rune][]rune{}

const (
	minSubscript = 4
	maxSubscript = 29
)

// VowelAlternatives is the number of candidates one & marker produces for a
// token with a vowel.
const VowelAlternatives = 3 + maxSubscript - minSubscript + 1

func init() {
	for _, class := range [][]rune{
		{'a', 'á', 'à'},
		{'e', 'é', 'è'},
		{'i', 'í', 'ì'},
		{'u', 'ú', 'ù'},
	} {
		for _, v := range class {
			vowelClasses[v] = class
		}
	}
}

type Kind int

const (
	Literal Kind = iota
	Bracket
	Consonant
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Bracket:
		return "bracket"
	case Consonant:
		return "consonant"
	default:
		return "unknown"
	}
}

// Segment is one run of a parsed token.
type Segment struct {
	Kind Kind
	// Text holds the characters of a Literal segment.
	Text string
	// Members holds the characters of a Bracket segment.
	Members []string
}

// Pattern is a parsed token.
type Pattern struct {
	Raw       string
	Alternate bool
	Vowel     bool
	Segments  []Segment
}

// Plain reports whether the pattern carries no markers at all.
func (p Pattern) Plain() bool {
	if p.Alternate || p.Vowel {
		return false
	}
	for _, seg := range p.Segments {
		if seg.Kind != Literal {
			return false
		}
	}
	return true
}

// Parse validates token and splits it into segments.
func Parse(token string) (Pattern, error) {
	p := Pattern{Raw: token}
	rest := token
	if strings.HasPrefix(rest, string(MarkerAlternate)) {
		p.Alternate = true
		rest = rest[1:]
	}
	if strings.HasPrefix(rest, string(MarkerVowel)) {
		p.Vowel = true
		rest = rest[1:]
	}
	if rest == "" {
		return Pattern{}, apperrors.Syntaxf("dangling wildcard marker in %q", token)
	}

	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			p.Segments = append(p.Segments, Segment{Kind: Literal, Text: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(rest); {
		r, size := utf8.DecodeRuneInString(rest[i:])
		switch r {
		case MarkerVowel, MarkerAlternate:
			return Pattern{}, apperrors.Syntaxf("marker %q must lead the token in %q", r, token)
		case ']':
			return Pattern{}, apperrors.Syntaxf("unbalanced ']' in %q", token)
		case MarkerConsonant:
			flush()
			p.Segments = append(p.Segments, Segment{Kind: Consonant})
		case '[':
			flush()
			end := strings.IndexByte(rest[i+1:], ']')
			if end < 0 {
				return Pattern{}, apperrors.Syntaxf("unbalanced '[' in %q", token)
			}
			body := rest[i+1 : i+1+end]
			if body == "" {
				return Pattern{}, apperrors.Syntaxf("empty bracket class in %q", token)
			}
			if strings.ContainsAny(body, "[&$") {
				return Pattern{}, apperrors.Syntaxf("invalid bracket class [%s] in %q", body, token)
			}
			seg := Segment{Kind: Bracket}
			for _, m := range body {
				seg.Members = append(seg.Members, string(m))
			}
			p.Segments = append(p.Segments, seg)
			i += 1 + end + 1
			continue
		default:
			lit.WriteRune(r)
		}
		i += size
	}
	flush()

	if p.Vowel && !p.hasVowel() {
		return Pattern{}, apperrors.Syntaxf("vowel wildcard without a vowel in %q", token)
	}
	return p, nil
}

func (p Pattern) hasVowel() bool {
	for _, seg := range p.Segments {
		switch seg.Kind {
		case Literal:
			if firstVowel(seg.Text) >= 0 {
				return true
			}
		case Bracket:
			for _, m := range seg.Members {
				if firstVowel(m) >= 0 {
					return true
				}
			}
		}
	}
	return false
}

// Count returns an upper bound on the number of candidates Expand produces,
// exact unless the expansion contains duplicates or vowel-less candidates.
// It never expands.
func (p Pattern) Count() int {
	n := 1
	for _, seg := range p.Segments {
		switch seg.Kind {
		case Bracket:
			width := 0
			for _, m := range seg.Members {
				if m == string(MarkerConsonant) {
					width += len(Consonants)
				} else {
					width++
				}
			}
			n = saturatingMul(n, width)
		case Consonant:
			n = saturatingMul(n, len(Consonants))
		}
	}
	if p.Vowel {
		n = saturatingMul(n, VowelAlternatives)
	}
	return n
}

const countCeiling = 1 << 40

func saturatingMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > countCeiling/b {
		return countCeiling
	}
	return a * b
}

// Expansion is the flat candidate set of one token.
type Expansion struct {
	Candidates []string
	// Alternate asks the resolver for every reading of each candidate's sign
	// rather than the candidate itself.
	Alternate bool
}

// Expand produces the candidates of p. Callers must check Count against
// their limits first.
func (p Pattern) Expand() Expansion {
	out := []string{""}
	for _, seg := range p.Segments {
		switch seg.Kind {
		case Literal:
			for i := range out {
				out[i] += seg.Text
			}
		case Bracket:
			out = cross(out, seg.Members)
		case Consonant:
			out = cross(out, []string{string(MarkerConsonant)})
		}
	}
	out = expandConsonants(out)
	if p.Vowel {
		var vowels []string
		for _, c := range out {
			vowels = append(vowels, expandVowel(c)...)
		}
		out = vowels
	}
	return Expansion{Candidates: dedupe(out), Alternate: p.Alternate}
}

func cross(prefixes, members []string) []string {
	out := make([]string, 0, len(prefixes)*len(members))
	for _, p := range prefixes {
		for _, m := range members {
			out = append(out, p+m)
		}
	}
	return out
}

// expandConsonants replaces every C, including those a bracket class
// contributed, with each consonant.
func expandConsonants(candidates []string) []string {
	var out []string
	for _, c := range candidates {
		parts := strings.Split(c, string(MarkerConsonant))
		acc := []string{parts[0]}
		for _, part := range parts[1:] {
			next := make([]string, 0, len(acc)*len(Consonants))
			for _, a := range acc {
				for _, k := range Consonants {
					next = append(next, a+k+part)
				}
			}
			acc = next
		}
		out = append(out, acc...)
	}
	return out
}

// expandVowel returns the accent variants of the first vowel in s followed by
// the subscripted forms of the unaccented token. A trailing subscript already
// on s is replaced. Strings without a vowel pass through unchanged.
func expandVowel(s string) []string {
	s = trimSubscript(s)
	at := firstVowel(s)
	if at < 0 {
		return []string{s}
	}
	v, size := utf8.DecodeRuneInString(s[at:])
	class := vowelClasses[v]
	head, tail := s[:at], s[at+size:]

	out := make([]string, 0, VowelAlternatives)
	for _, accented := range class {
		out = append(out, head+string(accented)+tail)
	}
	plain := head + string(class[0]) + tail
	for n := minSubscript; n <= maxSubscript; n++ {
		out = append(out, plain+normalize.Subscript(n))
	}
	return out
}

func firstVowel(s string) int {
	for i, r := range s {
		if _, ok := vowelClasses[r]; ok {
			return i
		}
	}
	return -1
}

func trimSubscript(s string) string {
	for s != "" {
		r, size := utf8.DecodeLastRuneInString(s)
		if r < '₀' || r > '₉' {
			break
		}
		s = s[:len(s)-size]
	}
	return s
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
