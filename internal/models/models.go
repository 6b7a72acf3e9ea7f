package models

// Page is one page of text extracted from a source document.
type Page struct {
	Text       string
	Number     int
	SourceFile string
}

// ParsedDocument is the ordered page sequence produced for one uploaded file.
type ParsedDocument struct {
	SourceFile string
	Pages      []Page
}

// Chunk is a bounded contiguous segment of a document, embedded independently.
// StartOffset is the rune offset into the document's concatenated page text.
type Chunk struct {
	Text        string
	StartOffset int
	PageNumber  int
	SourceFile  string
	ChunkID     int
}

// SearchResult pairs a retrieved chunk with its similarity score.
type SearchResult struct {
	Chunk      Chunk
	Similarity float32
}

// Response is the outcome of one question or summary request. AudioPath is
// empty when speech synthesis is disabled or failed.
type Response struct {
	Text      string
	AudioPath string
}
