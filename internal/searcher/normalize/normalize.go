// Package normalize rewrites raw query text into canonical sign strings and
// segments words into sign tokens. It applies, in order: Unicode NFC, ASCII
// transliteration digraphs, fractions, trailing-digit subscripts and numeral
// notation.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var digraphs = strings.NewReplacer(
	"sz", "š", "SZ", "Š", "Sz", "Š",
	"s,", "ṣ", "S,", "Ṣ",
	"t,", "ṭ", "T,", "Ṭ",
)

var fractions = strings.NewReplacer(
	"1/2", "½",
	"1/3", "⅓",
	"2/3", "⅔",
	"1/4", "¼",
	"3/4", "¾",
	"1/6", "⅙",
	"5/6", "⅚",
	"1/8", "⅛",
)

// numeralSigns are the signs a count may be attached to, in canonical form.
var numeralSigns = map[string]struct{}{
	"diš": {}, "aš": {}, "u": {}, "geš₂": {}, "gešʾu": {}, "šar₂": {},
	"šarʾu": {}, "šargal": {}, "ban₂": {}, "barig": {}, "bur₃": {},
	"burʾu": {}, "eše₃": {}, "iku": {},
}

var (
	countedNumeral = regexp.MustCompile(`^(\d+)(?:\(([^()]+)\)|(\pL[\pL\pM\d₀-₉ʾ']*))$`)
	bareInteger    = regexp.MustCompile(`^\d+$`)
)

// Normalize returns the canonical form of one raw sign token. A bare integer
// expands to its component numeral signs, so the result may hold several
// tokens; an empty or zero token yields none.
func Normalize(token string) []string {
	t := strings.TrimSpace(token)
	if t == "" {
		return nil
	}
	t = norm.NFC.String(t)
	t = outsideBrackets(t, digraphs.Replace)
	t = fractions.Replace(t)
	t = subscriptTrailingDigits(t)
	return numerals(t)
}

// Segment splits a query word into sign tokens on whitespace, hyphen, period
// and plus, normalizing each one.
func Segment(word string) []string {
	parts := strings.FieldsFunc(word, isSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, Normalize(p)...)
	}
	return out
}

// Words splits a phrase into its whitespace-delimited words.
func Words(phrase string) []string {
	return strings.Fields(phrase)
}

// outsideBrackets applies rewrite to the text between bracket classes only.
// Members of a class are single characters and must keep their identity, so
// "[sz]a" stays a class of s and z. An unclosed '[' leaves the rest as is.
func outsideBrackets(s string, rewrite func(string) string) string {
	if !strings.Contains(s, "[") {
		return rewrite(s)
	}
	var b strings.Builder
	for s != "" {
		open := strings.IndexByte(s, '[')
		if open < 0 {
			b.WriteString(rewrite(s))
			break
		}
		b.WriteString(rewrite(s[:open]))
		end := strings.IndexByte(s[open:], ']')
		if end < 0 {
			b.WriteString(s[open:])
			break
		}
		b.WriteString(s[open : open+end+1])
		s = s[open+end+1:]
	}
	return b.String()
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '-' || r == '.' || r == '+'
}

// subscriptTrailingDigits turns "du3" into "du₃". Tokens without a letter
// (bare numbers) are left for numeral handling.
func subscriptTrailingDigits(t string) string {
	end := len(t)
	start := end
	for start > 0 && t[start-1] >= '0' && t[start-1] <= '9' {
		start--
	}
	if start == end || start == 0 {
		return t
	}
	prefix := t[:start]
	if !strings.ContainsFunc(prefix, unicode.IsLetter) {
		return t
	}
	return prefix + toSubscript(t[start:])
}

// Subscript renders n with subscript digits, e.g. 12 as "₁₂".
func Subscript(n int) string {
	return toSubscript(strconv.Itoa(n))
}

func toSubscript(digits string) string {
	var b strings.Builder
	for _, r := range digits {
		if r >= '0' && r <= '9' {
			b.WriteRune('₀' + (r - '0'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func numerals(t string) []string {
	if bareInteger.MatchString(t) {
		return decompose(t)
	}
	m := countedNumeral.FindStringSubmatch(t)
	if m == nil {
		return []string{t}
	}
	sign := m[2]
	if sign == "" {
		sign = m[3]
	}
	sign = canonicalSign(sign)
	if _, ok := numeralSigns[sign]; !ok {
		return []string{t}
	}
	count := strings.TrimLeft(m[1], "0")
	if count == "" {
		return nil
	}
	return []string{count + "(" + sign + ")"}
}

func canonicalSign(sign string) string {
	sign = strings.ToLower(sign)
	sign = digraphs.Replace(sign)
	sign = strings.ReplaceAll(sign, "'", "ʾ")
	start := len(sign)
	for start > 0 && sign[start-1] >= '0' && sign[start-1] <= '9' {
		start--
	}
	return sign[:start] + toSubscript(sign[start:])
}

// decompose writes a bare count as sexagesimal component signs: 75 becomes
// 1(geš₂) 1(u) 5(diš).
func decompose(digits string) []string {
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return nil
	}
	var out []string
	units := []struct {
		value int
		sign  string
	}{
		{3600, "šar₂"},
		{60, "geš₂"},
		{10, "u"},
		{1, "diš"},
	}
	for _, u := range units {
		if q := n / u.value; q > 0 {
			out = append(out, strconv.Itoa(q)+"("+u.sign+")")
			n %= u.value
		}
	}
	return out
}
