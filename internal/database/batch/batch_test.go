package batch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEach_SplitsIntoSlices(t *testing.T) {
	items := make([]int, 1201)
	for i := range items {
		items[i] = i
	}

	var sizes []int
	seen := 0
	err := Each(items, 500, func(chunk []int) error {
		sizes = append(sizes, len(chunk))
		assert.Equal(t, seen, chunk[0])
		seen += len(chunk)
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []int{500, 500, 201}, sizes)
	assert.Equal(t, len(items), seen)
}

func TestEach_Empty(t *testing.T) {
	called := false
	err := Each([]int64{}, Size, func([]int64) error { called = true; return nil })
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestEach_StopsOnError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Each(make([]int, 10), 3, func([]int) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
