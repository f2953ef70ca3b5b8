package faq

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsQuestion(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"What is this study about exactly?", true},
		{"How much does the study pay participants?", true},
		{"Will I be compensated for my time?", true},
		{"tell me about the visit schedule please", true},
		{"is the study confidential and private", true},
		{"yes", false},
		{"no?", false},
		{"1990-05-01", false},
		{"9195551234", false},
		{`{"email":"a@b.com","phone":"9195551234"}`, false},
		{"maybe later", false},
		{"ok sounds good to me thanks", false},
	}
	for _, tc := range cases {
		if got := IsQuestion(tc.message); got != tc.want {
			t.Errorf("IsQuestion(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndChunkMarkdownSections(t *testing.T) {
	doc := "# Study FAQ\n\n## What is the study?\nA trial of nicotine pouches.\n\n## How much does it pay?\nUp to $500.\n"
	path := writeDoc(t, "faq.md", doc)

	chunks, err := LoadAndChunk(path, "zyn", 0)
	if err != nil {
		t.Fatalf("chunking failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunk count = %d, want 2: %+v", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[0].Text, "## What is the study?") {
		t.Errorf("first chunk lost its header: %q", chunks[0].Text)
	}
	if !strings.Contains(chunks[1].Text, "$500") {
		t.Errorf("second chunk lost its body: %q", chunks[1].Text)
	}
	for i, c := range chunks {
		if c.ChunkIndex != i || c.StudyID != "zyn" || c.Source != "faq.md" {
			t.Errorf("chunk %d mistagged: %+v", i, c)
		}
	}
}

func TestLoadAndChunkPlainText(t *testing.T) {
	path := writeDoc(t, "faq.txt", "First paragraph here.\n\nSecond paragraph here.\n")
	chunks, err := LoadAndChunk(path, "zyn", 0)
	if err != nil {
		t.Fatalf("chunking failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunk count = %d, want 2", len(chunks))
	}
}

func TestLoadAndChunkSplitsOversizedSections(t *testing.T) {
	long := strings.Repeat("word ", 100)
	path := writeDoc(t, "faq.txt", long)
	chunks, err := LoadAndChunk(path, "zyn", 120)
	if err != nil {
		t.Fatalf("chunking failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("oversized text should split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 120 {
			t.Errorf("chunk exceeds size limit: %d chars", len(c.Text))
		}
	}
}

func TestLoadAndChunkRejectsUnknownExtensions(t *testing.T) {
	if _, err := LoadAndChunk("faq.pdf", "zyn", 0); err == nil {
		t.Error("unsupported extension must be rejected")
	}
}

func TestMockEmbedderDeterministicUnitVectors(t *testing.T) {
	e := MockEmbedder{}
	a, err := e.Embed(context.Background(), "how much does the study pay")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(context.Background(), "how much does the study pay")
	c, _ := e.Embed(context.Background(), "something else entirely")

	if len(a) != DefaultMockDimension {
		t.Fatalf("dimension = %d, want %d", len(a), DefaultMockDimension)
	}
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("identical texts must embed identically")
		}
		norm += a[i] * a[i]
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-9 {
		t.Errorf("embedding not unit length: %f", math.Sqrt(norm))
	}
	if cosineSimilarity(a, c) > 0.99 {
		t.Error("distinct texts should not embed identically")
	}
}

func TestIndexRanksExactMatchFirst(t *testing.T) {
	ctx := context.Background()
	e := MockEmbedder{}
	ix := NewIndex()

	texts := []string{"compensation details", "visit schedule", "study location"}
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		v, _ := e.Embed(ctx, text)
		chunks[i] = Chunk{Text: text, Source: "faq.md", ChunkIndex: i, StudyID: "zyn", Embedding: v}
	}
	ix.Upsert("zyn", chunks)

	query, _ := e.Embed(ctx, "visit schedule")
	got := ix.Search("zyn", query, 2)
	if len(got) != 2 {
		t.Fatalf("result count = %d, want 2", len(got))
	}
	if got[0].Text != "visit schedule" {
		t.Errorf("exact match should rank first, got %q", got[0].Text)
	}

	if res := ix.Search("other-study", query, 2); len(res) != 0 {
		t.Errorf("search must be scoped by study, got %d results", len(res))
	}
}

func TestIndexUpsertReplacesStudyChunks(t *testing.T) {
	ix := NewIndex()
	ix.Upsert("zyn", []Chunk{{Text: "old", StudyID: "zyn", Embedding: []float64{1}}})
	ix.Upsert("other", []Chunk{{Text: "keep", StudyID: "other", Embedding: []float64{1}}})
	ix.Upsert("zyn", []Chunk{{Text: "new", StudyID: "zyn", Embedding: []float64{1}}})

	got := ix.Search("zyn", []float64{1}, 10)
	if len(got) != 1 || got[0].Text != "new" {
		t.Errorf("upsert should replace a study's chunks, got %+v", got)
	}
	if res := ix.Search("other", []float64{1}, 10); len(res) != 1 {
		t.Errorf("upsert must not disturb other studies, got %d results", len(res))
	}
}

// stubLLM returns a canned response and records the prompt it saw.
type stubLLM struct {
	response string
	err      error
	prompt   string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.response, s.err
}

func indexedService(t *testing.T, llm LLM) *Service {
	t.Helper()
	doc := "## How much does it pay?\nUp to $500 across all visits.\n\n## Where is the clinic?\nRaleigh, North Carolina.\n"
	path := writeDoc(t, "faq.md", doc)
	svc := NewService(MockEmbedder{}, NewIndex(), llm)
	n, err := svc.IndexDocument(context.Background(), "zyn", path)
	if err != nil {
		t.Fatalf("indexing failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("indexed %d chunks, want 2", n)
	}
	return svc
}

func TestServiceAnswerCarriesReferences(t *testing.T) {
	llm := &stubLLM{response: "The study pays up to $500 across all visits."}
	svc := indexedService(t, llm)

	ans, err := svc.Answer(context.Background(), "zyn", "How much does the study pay?")
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if ans.Text != llm.response {
		t.Errorf("answer text = %q", ans.Text)
	}
	if len(ans.References) == 0 || ans.References[0].Source != "faq.md" {
		t.Errorf("answer should cite the document, got %+v", ans.References)
	}
	if !strings.Contains(llm.prompt, "$500") {
		t.Error("retrieved context never reached the prompt")
	}
	if !strings.Contains(llm.prompt, "How much does the study pay?") {
		t.Error("question never reached the prompt")
	}
}

func TestServiceAnswerSuppressesCoaching(t *testing.T) {
	coached := []string{
		"To qualify you need to smoke at least 5 cigarettes a day.",
		"You should say yes when asked about switching products.",
		"In order to be eligible, report smoking for over a year.",
		"Make sure you answer no to the pregnancy question.",
	}
	for _, response := range coached {
		svc := indexedService(t, &stubLLM{response: response})
		ans, err := svc.Answer(context.Background(), "zyn", "What do I need to do to join?")
		if err != nil {
			t.Fatalf("answer failed: %v", err)
		}
		if ans.Text != safeFallback {
			t.Errorf("coaching response %q escaped the guardrail: %q", response, ans.Text)
		}
		if len(ans.References) == 0 {
			t.Error("suppressed answer should still carry references")
		}
	}
}

func TestServiceAnswerEmptyIndex(t *testing.T) {
	llm := &stubLLM{response: "never called"}
	svc := NewService(MockEmbedder{}, NewIndex(), llm)

	ans, err := svc.Answer(context.Background(), "zyn", "How much does the study pay?")
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if ans.Text != noContextAnswer {
		t.Errorf("empty index should produce the no-context answer, got %q", ans.Text)
	}
	if llm.prompt != "" {
		t.Error("LLM must not be called without retrieved context")
	}
}

func TestServiceAnswerPropagatesLLMFailure(t *testing.T) {
	svc := indexedService(t, &stubLLM{err: fmt.Errorf("rate limited")})
	if _, err := svc.Answer(context.Background(), "zyn", "How much does the study pay?"); err == nil {
		t.Error("LLM failure must surface as an error")
	}
}
