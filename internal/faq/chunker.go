package faq

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxChunkSize is the character ceiling per chunk.
const DefaultMaxChunkSize = 1000

// Chunk is one indexed slice of a study document, tagged with its origin so
// answers can cite where they came from.
type Chunk struct {
	Text       string
	Source     string
	ChunkIndex int
	StudyID    string
	Embedding  []float64
}

// LoadAndChunk reads a .md or .txt document and splits it into chunks.
// Markdown documents split on "## " section headers so each Q&A stays
// together; plain text splits on blank lines. Oversized pieces are split
// further at word boundaries.
func LoadAndChunk(path, studyID string, maxChunkSize int) ([]Chunk, error) {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".md" && ext != ".txt" {
		return nil, fmt.Errorf("unsupported document type %q", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	content := string(data)
	source := filepath.Base(path)

	var pieces []string
	if ext == ".md" && strings.Contains(content, "\n## ") {
		pieces = splitMarkdownSections(content)
	} else {
		pieces = strings.Split(content, "\n\n")
	}

	var texts []string
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) > maxChunkSize {
			texts = append(texts, splitLongText(p, maxChunkSize)...)
		} else {
			texts = append(texts, p)
		}
	}

	chunks := make([]Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, Chunk{Text: text, Source: source, ChunkIndex: i, StudyID: studyID})
	}
	return chunks, nil
}

// splitMarkdownSections splits on "## " headers, keeping header and body
// together and dropping a bare document title.
func splitMarkdownSections(content string) []string {
	sections := strings.Split(content, "\n## ")
	var out []string
	for i, section := range sections {
		text := strings.TrimSpace(section)
		if i > 0 {
			text = "## " + text
		}
		if text == "" || text == "## " {
			continue
		}
		// Drop a bare document title preceding the first section.
		if i == 0 && strings.HasPrefix(text, "# ") && !strings.HasPrefix(text, "## ") {
			continue
		}
		out = append(out, text)
	}
	return out
}

// splitLongText breaks a long piece at word boundaries.
func splitLongText(text string, maxSize int) []string {
	words := strings.Fields(text)
	var parts []string
	var current strings.Builder
	for _, word := range words {
		if current.Len() > 0 && current.Len()+len(word)+1 > maxSize {
			parts = append(parts, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
