package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleSort(t *testing.T) {
	assert.Equal(t, "Hobbit, The", TitleSort("The Hobbit"))
	assert.Equal(t, "Wizard of Earthsea, A", TitleSort("A Wizard of Earthsea"))
	assert.Equal(t, "Dune", TitleSort("Dune"))
	assert.Equal(t, "Theory of Everything", TitleSort("Theory of Everything"))
	assert.Equal(t, "The", TitleSort("The"))
}

func TestAuthorSort(t *testing.T) {
	assert.Equal(t, "Herbert, Frank", AuthorSort("Frank Herbert"))
	assert.Equal(t, "Banks, Iain M.", AuthorSort("Iain M. Banks"))
	assert.Equal(t, "Homer", AuthorSort("Homer"))
	assert.Equal(t, "Herbert, Frank & Anderson, Kevin J.", AuthorsSort([]string{"Frank Herbert", "Kevin J. Anderson"}))
}

func TestJoinSplitAuthors(t *testing.T) {
	names := []string{"Terry Pratchett", "Neil Gaiman"}
	assert.Equal(t, names, SplitAuthors(JoinAuthors(names)))
	assert.Nil(t, SplitAuthors("  "))
}
