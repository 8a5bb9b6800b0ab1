package imap

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand"
)

const (
	tagAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	maxTagIndex = 999
)

// TagGenerator produces unique short string tags of the form "<L><DDD>",
// where <L> is a single uppercase letter fixed at construction and <DDD> is
// a zero-padded base-10 index in [0, 999] that wraps back to 0 once it
// exceeds the ceiling.
//
// Grounded on temail::TagGenerator in original_source/include/temail/tag.hpp:
// the source seeds a process-wide std::mt19937 from std::random_device and
// shares it across generators. This rewrite gives each generator its own
// PRNG seeded at construction instead, per spec.md §9's note against
// shared mutable statics.
type TagGenerator struct {
	letter byte
	idx    uint16
}

// NewTagGenerator constructs a generator with a letter drawn uniformly from
// the 26-letter uppercase alphabet.
func NewTagGenerator() *TagGenerator {
	return NewTagGeneratorWithLetter(tagAlphabet[randomAlphabetIndex()])
}

// NewTagGeneratorWithLetter constructs a generator with an explicit prefix
// letter.
func NewTagGeneratorWithLetter(letter byte) *TagGenerator {
	return &TagGenerator{letter: letter}
}

// Generate returns the current tag and advances the index.
func (g *TagGenerator) Generate() Tag {
	tag := Tag(fmt.Sprintf("%c%03d", g.letter, g.idx))
	g.idx++
	if g.idx > maxTagIndex {
		g.idx = 0
	}
	return tag
}

// Label returns "<L>XXX" for diagnostics.
func (g *TagGenerator) Label() string {
	return fmt.Sprintf("%cXXX", g.letter)
}

func randomAlphabetIndex() int {
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// crypto/rand failing is exceptional; fall back to index 0 (the
		// letter 'A') rather than leaving the index undefined.
		return 0
	}
	src := mrand.NewSource(int64(binary.LittleEndian.Uint64(seed[:])))
	return mrand.New(src).Intn(len(tagAlphabet))
}
