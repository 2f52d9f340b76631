// Package morsecode implements the character/representation codec: the
// bidirectional mapping between printable characters and dot/dash
// representation strings, plus the procedural-sign and phonetic tables.
package morsecode

import "sync"

// MaxRepresentationLength is the longest representation string in the
// table ('.'/'-' glyphs only).
const MaxRepresentationLength = 7

// Entry is an immutable (character, representation) pair.
type Entry struct {
	Char           rune
	Representation string
}

// table is the ITU international Morse set plus the additional ASCII
// punctuation unixcw-derived tools traditionally ship.
var table = []Entry{
	{'A', ".-"}, {'B', "-..."}, {'C', "-.-."}, {'D', "-.."}, {'E', "."},
	{'F', "..-."}, {'G', "--."}, {'H', "...."}, {'I', ".."}, {'J', ".---"},
	{'K', "-.-"}, {'L', ".-.."}, {'M', "--"}, {'N', "-."}, {'O', "---"},
	{'P', ".--."}, {'Q', "--.-"}, {'R', ".-."}, {'S', "..."}, {'T', "-"},
	{'U', "..-"}, {'V', "...-"}, {'W', ".--"}, {'X', "-..-"}, {'Y', "-.--"},
	{'Z', "--.."},

	{'0', "-----"}, {'1', ".----"}, {'2', "..---"}, {'3', "...--"},
	{'4', "....-"}, {'5', "....."}, {'6', "-...."}, {'7', "--..."},
	{'8', "---.."}, {'9', "----."},

	{'.', ".-.-.-"}, {',', "--..--"}, {'?', "..--.."}, {'\'', ".----."},
	{'!', "-.-.--"}, {'/', "-..-."}, {'(', "-.--."}, {')', "-.--.-"},
	{'&', ".-..."}, {':', "---..."}, {';', "-.-.-."}, {'=', "-...-"},
	{'+', ".-.-."}, {'-', "-....-"}, {'_', "..--.-"}, {'"', ".-..-."},
	{'$', "...-..-"}, {'@', ".--.-."},

	{' ', " "},
}

// proceduralSign is a prosign: a short group of ordinary characters that is
// keyed as a single run without the usual inter-character space.
type proceduralSign struct {
	Expansion       string
	UsuallyExpanded bool
}

var procedural = map[rune]proceduralSign{
	'*': {Expansion: "AR", UsuallyExpanded: true},  // end of message
	'~': {Expansion: "SK", UsuallyExpanded: true},  // end of contact
	'%': {Expansion: "BT", UsuallyExpanded: false}, // break / new paragraph
	'<': {Expansion: "KN", UsuallyExpanded: true},  // invite named station
	'>': {Expansion: "AS", UsuallyExpanded: false}, // wait
	'^': {Expansion: "HH", UsuallyExpanded: false}, // error, correction follows
	'#': {Expansion: "VE", UsuallyExpanded: false}, // verified
}

var phonetic = map[rune]string{
	'A': "Alfa", 'B': "Bravo", 'C': "Charlie", 'D': "Delta", 'E': "Echo",
	'F': "Foxtrot", 'G': "Golf", 'H': "Hotel", 'I': "India", 'J': "Juliett",
	'K': "Kilo", 'L': "Lima", 'M': "Mike", 'N': "November", 'O': "Oscar",
	'P': "Papa", 'Q': "Quebec", 'R': "Romeo", 'S': "Sierra", 'T': "Tango",
	'U': "Uniform", 'V': "Victor", 'W': "Whiskey", 'X': "X-ray", 'Y': "Yankee",
	'Z': "Zulu",
}

var (
	initOnce sync.Once

	directByChar map[rune]string
	directByRep  map[string]rune
	hashTable    [256]rune // 0 = no entry; indexed by hashRepresentation
)

func buildTables() {
	directByChar = make(map[rune]string, len(table))
	directByRep = make(map[string]rune, len(table))

	for _, e := range table {
		directByChar[e.Char] = e.Representation
		directByRep[e.Representation] = e.Char

		if e.Representation == " " {
			continue // space has no dot/dash hash slot
		}
		h, err := hashRepresentation(e.Representation)
		if err != nil {
			// Table entries are all well-formed by construction.
			panic("morsecode: bad table entry " + string(e.Char) + " " + e.Representation)
		}
		hashTable[h] = e.Char
	}
}

func ensureInit() {
	initOnce.Do(buildTables)
}

// ListCharacters returns every printable character the table knows about,
// in table order.
func ListCharacters() []rune {
	ensureInit()
	out := make([]rune, 0, len(table))
	for _, e := range table {
		out = append(out, e.Char)
	}
	return out
}

// CharacterCount returns the number of entries in the character table.
func CharacterCount() int {
	ensureInit()
	return len(table)
}
