package morsecode

import "unicode"

// CharacterToRepresentation looks up the dot/dash representation of c.
// The lookup is case-insensitive; the table stores uppercase letters only.
func CharacterToRepresentation(c rune) (string, bool) {
	ensureInit()
	rep, ok := directByChar[unicode.ToUpper(c)]
	return rep, ok
}

// RepresentationToCharacter looks up the character for a representation
// using the hash-indexed fast path described in hash.go.
func RepresentationToCharacter(rep string) (rune, bool) {
	ensureInit()
	if rep == " " {
		return ' ', true
	}
	h, err := hashRepresentation(rep)
	if err != nil {
		return 0, false
	}
	c := hashTable[h]
	if c == 0 {
		return 0, false
	}
	return c, true
}

// RepresentationToCharacterDirect is the linear-scan verification path: it
// must agree with RepresentationToCharacter for every representation in the
// table. Kept for the round-trip property tests and as a reference
// implementation independent of the hash.
func RepresentationToCharacterDirect(rep string) (rune, bool) {
	ensureInit()
	c, ok := directByRep[rep]
	return c, ok
}

// IsCharacterValid reports whether c (or its uppercase form) has a table
// entry. Space is valid. Backspace is not: erasure is the front end's job
// via the generator's RemoveLastCharacter operation, not a codec concern.
func IsCharacterValid(c rune) bool {
	ensureInit()
	_, ok := directByChar[unicode.ToUpper(c)]
	return ok
}

// IsStringValid reports whether every rune in s is individually valid.
func IsStringValid(s string) bool {
	for _, c := range s {
		if !IsCharacterValid(c) {
			return false
		}
	}
	return true
}

// IsRepresentationValid reports whether rep is a well-formed dot/dash
// string of length 1..7 (it need not map to a character).
func IsRepresentationValid(rep string) bool {
	if len(rep) == 0 || len(rep) > MaxRepresentationLength {
		return false
	}
	for _, r := range rep {
		if r != '.' && r != '-' {
			return false
		}
	}
	return true
}

// LookupProcedural returns the expansion for a procedural-sign character
// and whether it is conventionally sent as its expansion by default.
func LookupProcedural(c rune) (expansion string, usuallyExpanded bool, ok bool) {
	p, ok := procedural[unicode.ToUpper(c)]
	if !ok {
		return "", false, false
	}
	return p.Expansion, p.UsuallyExpanded, true
}

// LookupPhonetic returns the NATO phonetic word for an alphabetic
// character. Non-alphabetic characters never match.
func LookupPhonetic(c rune) (string, bool) {
	word, ok := phonetic[unicode.ToUpper(c)]
	return word, ok
}

// MaxRepresentationLen returns the longest representation length present in
// the table (exported accessor; kept distinct from the MaxRepresentationLength
// constant so a future table change self-reports the true maximum).
func MaxRepresentationLen() int {
	ensureInit()
	max := 0
	for _, e := range table {
		if l := len(e.Representation); l > max {
			max = l
		}
	}
	return max
}
