package store

import (
	"strconv"
	"strings"
)

// GridShape returns the number of chunks in each dimension: for dimension i
// that is ceil(shape[i] / chunks[i]).
func GridShape(shape, chunks []int) []int {
	grid := make([]int, len(shape))
	for i := range shape {
		grid[i] = (shape[i] + chunks[i] - 1) / chunks[i]
	}

	return grid
}

// ChunkKey builds the store key for a chunk from its grid indices, joined by
// separator. A 0-dimensional array stores its single chunk under "0".
func ChunkKey(indices []int, separator string) string {
	if len(indices) == 0 {
		return "0"
	}

	var sb strings.Builder

	for i, idx := range indices {
		if i > 0 {
			sb.WriteString(separator)
		}

		sb.WriteString(strconv.Itoa(idx))
	}

	return sb.String()
}
