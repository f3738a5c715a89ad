// Package policy implements the password-policy evaluator:
// a pure, idempotent function from a server-supplied PasswordPolicy and
// a candidate string to an ordered sequence of validation-error tags.
package policy

import (
	"fmt"
	"math"
)

// Policy is a server-supplied password policy. Zero values mean "no
// constraint" (min=0, max=MaxInt, repeats=MaxInt, unique=0); use
// Default to get those defaults explicitly.
type Policy struct {
	MinLength             int
	MaxLength             int
	MinUniqueCharacters   int
	MaxRepeatedCharacters int
	// MinCharacters maps an opaque character-class string (server
	// supplied; may be a named class like "digit" or a literal set of
	// characters) to the minimum count of that class required. Order
	// matters: failing classes are reported in the map's insertion
	// order, so this is a slice of entries rather than a
	// plain map.
	MinCharacters []CharacterClass
}

// CharacterClass is one entry of PasswordPolicy.minCharacters: a class
// name/charset plus the minimum number of its members required.
type CharacterClass struct {
	Name string
	Min  int
}

// Default returns the policy applied when the server omits fields: no
// length bound, no uniqueness/repeat bound, no required classes.
func Default() Policy {
	return Policy{
		MinLength:             0,
		MaxLength:             math.MaxInt,
		MinUniqueCharacters:   0,
		MaxRepeatedCharacters: math.MaxInt,
	}
}

// Tag is one ordered validation-error tag.
type Tag string

const (
	TagRequired         Tag = "required"
	TagInvalidLength    Tag = "invalidLength"
	TagUniqueCharacter  Tag = "uniqueCharacter"
	TagMaxRepeat        Tag = "maxRepeat"
	TagMinCharactersFmt     = "minCharacters:%s"
)

// Validate evaluates password against p in a fixed order: required,
// invalidLength, uniqueCharacter, maxRepeat, then one
// minCharacters(class) tag per failing class in p.MinCharacters'
// order. Validate is pure: identical (p, password) inputs always
// produce an identical result.
func Validate(p Policy, password string) []string {
	var tags []string

	if password == "" {
		return append(tags, string(TagRequired))
	}

	length := len([]rune(password))
	maxLen := p.MaxLength
	if maxLen == 0 {
		maxLen = math.MaxInt
	}
	if length < p.MinLength || length > maxLen {
		tags = append(tags, string(TagInvalidLength))
	}

	if p.MinUniqueCharacters > 0 && countUnique(password) < p.MinUniqueCharacters {
		tags = append(tags, string(TagUniqueCharacter))
	}

	maxRepeat := p.MaxRepeatedCharacters
	if maxRepeat == 0 {
		maxRepeat = math.MaxInt
	}
	if longestRun(password) > maxRepeat {
		tags = append(tags, string(TagMaxRepeat))
	}

	for _, class := range p.MinCharacters {
		if class.Min <= 0 {
			continue
		}
		if countMembers(password, class.Name) < class.Min {
			tags = append(tags, fmt.Sprintf(TagMinCharactersFmt, class.Name))
		}
	}

	return tags
}

// countUnique returns the number of distinct runes in s.
func countUnique(s string) int {
	seen := make(map[rune]struct{})
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}

// longestRun returns the length of the longest run of a single
// repeated rune in s.
func longestRun(s string) int {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	longest, current := 1, 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			current++
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
	}
	return longest
}

// countMembers counts how many runes of s appear in class. The
// character-class string is treated as an opaque set of codepoints
// compared by containment, never interpreted as a named class like
// "digit"/"alpha" server-side semantics.
func countMembers(s, class string) int {
	set := make(map[rune]struct{}, len(class))
	for _, r := range class {
		set[r] = struct{}{}
	}
	count := 0
	for _, r := range s {
		if _, ok := set[r]; ok {
			count++
		}
	}
	return count
}
