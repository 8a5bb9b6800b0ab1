package imap_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dessera-temail/go-imapclient"
)

func TestTagGeneratorSequenceAndWrap(t *testing.T) {
	g := imap.NewTagGeneratorWithLetter('A')

	assert.Equal(t, imap.Tag("A000"), g.Generate())
	assert.Equal(t, imap.Tag("A001"), g.Generate())
	assert.Equal(t, "AXXX", g.Label())

	for i := 0; i < 997; i++ {
		g.Generate()
	}
	assert.Equal(t, imap.Tag("A999"), g.Generate())
	assert.Equal(t, imap.Tag("A000"), g.Generate())
}

func TestTagGeneratorDistinctTagsInOrder(t *testing.T) {
	g := imap.NewTagGeneratorWithLetter('B')

	var tags []imap.Tag
	for i := 0; i < 50; i++ {
		tags = append(tags, g.Generate())
	}

	seen := make(map[imap.Tag]bool)
	for i, tag := range tags {
		assert.Falsef(t, seen[tag], "tag %v repeated at index %d", tag, i)
		seen[tag] = true
		assert.Equal(t, imap.Tag(fmt.Sprintf("B%03d", i)), tag)
	}
}
