package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGridShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		shape  []int
		chunks []int
		want   []int
	}{
		{name: "even", shape: []int{4, 2400, 2400, 3}, chunks: []int{1, 1200, 1200, 3}, want: []int{4, 2, 2, 1}},
		{name: "ragged", shape: []int{1, 1000, 2500, 3}, chunks: []int{1, 1200, 1200, 3}, want: []int{1, 1, 3, 1}},
		{name: "single chunk", shape: []int{1, 10, 10, 1}, chunks: []int{1, 1200, 1200, 1}, want: []int{1, 1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, GridShape(tt.shape, tt.chunks))
		})
	}
}

func TestChunkKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0.1.2.0", ChunkKey([]int{0, 1, 2, 0}, "."))
	assert.Equal(t, "3/0", ChunkKey([]int{3, 0}, "/"))
	assert.Equal(t, "0", ChunkKey(nil, "."))
}
