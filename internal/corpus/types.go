// Package corpus defines the read-only view of ingested tablet texts that the
// search engine works against: documents, their ordered sign occurrences, and
// the reading catalog that maps transliterated values to reading identifiers.
package corpus

import "sort"

type (
	DocumentID int64
	ReadingID  int64
	SignID     int64
	GroupID    int64
)

// Markup is a bit set of editorial flags attached to a sign occurrence.
type Markup uint8

const (
	MarkupSuperfluous Markup = 1 << iota
	MarkupDamaged
	MarkupErased
)

func (m Markup) Has(flag Markup) bool {
	return m&flag != 0
}

// Token is one sign occurrence in one document.
type Token struct {
	Document DocumentID `json:"document_id"`
	Position int        `json:"position"`
	Side     string     `json:"side"`
	Line     int        `json:"line"`
	Group    GroupID    `json:"group,omitempty"`
	// Grouped is false when the occurrence belongs to no discourse unit.
	Grouped bool      `json:"grouped"`
	Reading ReadingID `json:"reading"`
	Markup  Markup    `json:"markup,omitempty"`
}

// SameGroup reports whether both tokens belong to the same discourse unit.
// An ungrouped token shares a unit with nothing, not even another ungrouped
// token.
func SameGroup(a, b Token) bool {
	return a.Grouped && b.Grouped && a.Group == b.Group
}

type Document struct {
	ID   DocumentID `json:"id"`
	Name string     `json:"name"`
}

// Sequence is a document together with its tokens ordered by position.
type Sequence struct {
	Document Document
	Tokens   []Token
}

// CatalogEntry maps one transliterated value to its reading. Several entries
// may share a Sign; those are the alternate readings of one grapheme.
type CatalogEntry struct {
	Reading ReadingID `json:"reading"`
	Value   string    `json:"value"`
	Sign    SignID    `json:"sign"`
}

// ReadingSet is the resolved set of acceptable readings for one query slot.
type ReadingSet map[ReadingID]struct{}

func NewReadingSet(ids ...ReadingID) ReadingSet {
	s := make(ReadingSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ReadingSet) Contains(id ReadingID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s ReadingSet) Sorted() []ReadingID {
	ids := make([]ReadingID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
