package chunker

import (
	"strings"

	"casevise/internal/models"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits a parsed document into overlapping fixed-size segments by a
// sliding character window. Splitting is a pure function of the input: no
// randomness, no sentence or paragraph snapping.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 2
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split concatenates the document's page texts (newline-joined) and slides a
// window of c.size runes with c.overlap runes of overlap (stride size-overlap).
// A document shorter than the window yields exactly one chunk at offset 0.
// Each chunk records the page containing its start offset.
func (c *Chunker) Split(doc models.ParsedDocument) []models.Chunk {
	type pageStart struct {
		offset int
		number int
	}

	var sb strings.Builder
	var starts []pageStart
	offset := 0
	for i, p := range doc.Pages {
		if i > 0 {
			sb.WriteString("\n")
			offset++
		}
		starts = append(starts, pageStart{offset: offset, number: p.Number})
		sb.WriteString(p.Text)
		offset += len([]rune(p.Text))
	}

	text := []rune(sb.String())
	if len(text) == 0 {
		return nil
	}

	pageAt := func(off int) int {
		page := 1
		for _, s := range starts {
			if s.offset > off {
				break
			}
			page = s.number
		}
		return page
	}

	stride := c.size - c.overlap
	var chunks []models.Chunk
	for start := 0; start < len(text); start += stride {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, models.Chunk{
			Text:        string(text[start:end]),
			StartOffset: start,
			PageNumber:  pageAt(start),
			SourceFile:  doc.SourceFile,
			ChunkID:     len(chunks) + 1,
		})
		if end == len(text) {
			break
		}
	}
	return chunks
}
