package faq

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

// LLM generates an answer from a fully assembled prompt.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAILLM answers through the OpenAI chat completions API.
type OpenAILLM struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAILLM creates a chat-backed LLM using the given API key.
func NewOpenAILLM(apiKey string) (*OpenAILLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	return &OpenAILLM{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Generate runs one completion over the prompt.
func (l *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: l.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Answer coaching guardrail: generated text steering the participant toward
// qualifying answers is suppressed and replaced with a safe fallback.
var coachingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)to qualify`),
	regexp.MustCompile(`(?i)you should (say|answer|report|claim|state)`),
	regexp.MustCompile(`(?i)in order to (be eligible|pass|qualify)`),
	regexp.MustCompile(`(?i)make sure (you|to) (say|answer|report)`),
}

const safeFallback = "I can only share information from the study FAQ. " +
	"I can't provide guidance on how to qualify."

const noContextAnswer = "I don't have information about that in the study FAQ."

// Reference cites where an answer came from.
type Reference struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
}

// Answer is a generated FAQ response plus its source citations.
type Answer struct {
	Text       string      `json:"text"`
	References []Reference `json:"references"`
}

// Responder answers study questions. The API layer consumes this interface;
// a nil responder disables the FAQ boundary entirely.
type Responder interface {
	Answer(ctx context.Context, studyID, question string) (Answer, error)
}

// Opts holds the service configuration applied by Option functions.
type Opts struct {
	TopK         int
	MaxChunkSize int
}

// Option configures the Service.
type Option func(*Opts)

// WithTopK overrides the number of chunks retrieved per question.
func WithTopK(k int) Option {
	return func(o *Opts) {
		o.TopK = k
	}
}

// WithMaxChunkSize overrides the chunk size used when indexing documents.
func WithMaxChunkSize(n int) Option {
	return func(o *Opts) {
		o.MaxChunkSize = n
	}
}

// Service answers FAQ questions by embedding the question, retrieving the
// closest document chunks, and generating a grounded answer.
type Service struct {
	embedder     Embedder
	index        *Index
	llm          LLM
	topK         int
	maxChunkSize int
}

// NewService creates a Service over the given embedder, index, and LLM.
func NewService(embedder Embedder, index *Index, llm LLM, opts ...Option) *Service {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = DefaultMaxChunkSize
	}
	return &Service{
		embedder:     embedder,
		index:        index,
		llm:          llm,
		topK:         cfg.TopK,
		maxChunkSize: cfg.MaxChunkSize,
	}
}

// IndexDocument chunks, embeds, and indexes one study document. It returns
// the number of chunks indexed.
func (s *Service) IndexDocument(ctx context.Context, studyID, path string) (int, error) {
	chunks, err := LoadAndChunk(path, studyID, s.maxChunkSize)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed document: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	s.index.Upsert(studyID, chunks)
	slog.Debug("faq document indexed", "study_id", studyID, "path", path, "chunks", len(chunks))
	return len(chunks), nil
}

// Answer retrieves context for the question and generates a grounded
// response, with citations back to the indexed chunks.
func (s *Service) Answer(ctx context.Context, studyID, question string) (Answer, error) {
	query, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to embed question: %w", err)
	}
	results := s.index.Search(studyID, query, s.topK)
	if len(results) == 0 {
		return Answer{Text: noContextAnswer, References: []Reference{}}, nil
	}

	contextParts := make([]string, 0, len(results))
	references := make([]Reference, 0, len(results))
	for _, c := range results {
		contextParts = append(contextParts, c.Text)
		references = append(references, Reference{Source: c.Source, ChunkIndex: c.ChunkIndex})
	}

	prompt := buildAnswerPrompt(strings.Join(contextParts, "\n\n"), question)
	raw, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}
	if containsCoaching(raw) {
		slog.Debug("faq answer suppressed by coaching guardrail", "study_id", studyID)
		return Answer{Text: safeFallback, References: references}, nil
	}
	return Answer{Text: raw, References: references}, nil
}

func buildAnswerPrompt(context, question string) string {
	return "You are a helpful assistant answering questions about a clinical study. " +
		"Answer based on the provided context. If the user's question relates to " +
		"any topic covered in the context, provide the relevant information even if " +
		"the wording differs. Be generous in matching intent. " +
		"Do NOT provide guidance on how to qualify for the study. " +
		"Do NOT mention eligibility criteria or screening logic. " +
		"Only say you don't have the information if the context is entirely unrelated " +
		"to the question.\n\n" +
		"Context:\n" + context + "\n\n" +
		"Question: " + question + "\n\n" +
		"Answer:"
}

func containsCoaching(text string) bool {
	for _, p := range coachingPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
