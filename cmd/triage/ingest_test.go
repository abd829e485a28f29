package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkText_SplitsOnParagraphBoundaryWithinSize(t *testing.T) {
	text := strings.Repeat("a", 10) + "\n\n" + strings.Repeat("b", 10)
	chunks := chunkText(text, 15)
	assert.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 10), chunks[0])
	assert.Equal(t, strings.Repeat("b", 10), chunks[1])
}

func TestChunkText_EmptyInputYieldsNoChunks(t *testing.T) {
	assert.Empty(t, chunkText("   ", 100))
}

func TestChunkText_SingleChunkWhenUnderSize(t *testing.T) {
	chunks := chunkText("short document", 1500)
	assert.Equal(t, []string{"short document"}, chunks)
}
