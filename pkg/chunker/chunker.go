package chunker

import (
	"strings"
)

type ChunkOptions struct {
	ChunkSize    int // window size in characters
	ChunkOverlap int // characters shared by consecutive windows
}

type TextChunk struct {
	Content string
	Index   int
	Start   int // character offset
	End     int
}

// DefaultOptions matches the upload contract: 500-character windows, no overlap.
func DefaultOptions() ChunkOptions {
	return ChunkOptions{
		ChunkSize:    500,
		ChunkOverlap: 0,
	}
}

// Chunk splits text into fixed character windows. Offsets count runes, so
// multi-byte text is never cut inside a character. Blank windows are dropped.
func Chunk(text string, opts ChunkOptions) []TextChunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions().ChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 0
	}

	var chunks []TextChunk
	runes := []rune(text)
	step := opts.ChunkSize - opts.ChunkOverlap

	for start := 0; start < len(runes); start += step {
		end := min(start+opts.ChunkSize, len(runes))

		content := string(runes[start:end])
		if strings.TrimSpace(content) == "" {
			continue
		}
		chunks = append(chunks, TextChunk{
			Content: content,
			Index:   len(chunks),
			Start:   start,
			End:     end,
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}
