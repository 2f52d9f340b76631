package morsecode

import (
	"fmt"
	"os"
	"unicode"

	"gopkg.in/yaml.v3"
)

// override is one dictionary-file entry: a single character and its
// dot/dash representation, overriding or extending the built-in table.
type override struct {
	Char           string `yaml:"char"`
	Representation string `yaml:"representation"`
}

// dictionaryFile is the top-level shape of a YAML override file, e.g.:
//
//	entries:
//	  - char: "É"
//	    representation: "..-.."
type dictionaryFile struct {
	Entries []override `yaml:"entries"`
}

// LoadOverrides reads a YAML dictionary file and merges its entries into the
// character table, overriding any existing mapping for the same character
// and adding new hash-table slots. Call before any codec lookup that should
// observe the overrides; safe to call multiple times.
func LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("morsecode: read dictionary %s: %w", path, err)
	}

	var f dictionaryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("morsecode: parse dictionary %s: %w", path, err)
	}

	ensureInit()
	for _, e := range f.Entries {
		runes := []rune(e.Char)
		if len(runes) != 1 {
			return fmt.Errorf("morsecode: dictionary entry %q is not a single character", e.Char)
		}
		if !IsRepresentationValid(e.Representation) {
			return fmt.Errorf("morsecode: dictionary entry %q has an invalid representation %q", e.Char, e.Representation)
		}

		c := unicode.ToUpper(runes[0])
		rep := e.Representation

		table = append(table, Entry{Char: c, Representation: rep})
		directByChar[c] = rep
		directByRep[rep] = c

		h, err := hashRepresentation(rep)
		if err != nil {
			return fmt.Errorf("morsecode: dictionary entry %q: %w", e.Char, err)
		}
		hashTable[h] = c
	}
	return nil
}
