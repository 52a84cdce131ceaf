package domain

import "context"

// Document represents a single source file loaded into the system.
type Document struct {
	ID      string
	Name    string
	Path    string
	Content string
}

// Chunk is a bounded span of document text, the unit of retrieval.
type Chunk struct {
	ID      string
	Source  string // originating file name, used for citations
	Index   int    // ordinal position within the source
	Total   int    // number of chunks produced from the source
	Content string
}

// Candidate is a chunk paired with its similarity to a query embedding.
// Candidates only live for the duration of one query.
type Candidate struct {
	Chunk      Chunk
	Similarity float64
}

// Intent classifies what shape of answer a query wants.
type Intent int

const (
	// IntentCasual covers greetings, acknowledgments and other small talk.
	// No retrieval is spent on these.
	IntentCasual Intent = iota
	// IntentNarrative is the default: analytical prose with citations.
	IntentNarrative
	// IntentTabular demands a strict table/record extraction with no prose.
	IntentTabular
)

func (i Intent) String() string {
	switch i {
	case IntentCasual:
		return "casual"
	case IntentTabular:
		return "tabular"
	default:
		return "narrative"
	}
}

// DetailLevel selects between a short and a research-grade answer.
type DetailLevel int

const (
	DetailBrief DetailLevel = iota
	DetailDetailed
)

func (d DetailLevel) String() string {
	if d == DetailDetailed {
		return "detailed"
	}
	return "brief"
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation, in OpenAI chat format.
type Message struct {
	Role    Role
	Content string
}

// Delta is one increment of a streamed model response. A non-nil Err
// terminates the stream; whatever content arrived before it is kept.
type Delta struct {
	Content string
	Err     error
}

// GenOptions are the sampling parameters for one generation request.
type GenOptions struct {
	MaxTokens        int
	Temperature      float32
	TopP             float32
	FrequencyPenalty float32
	PresencePenalty  float32
}

// Chunker splits documents into overlapping chunks suitable for indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists chunk vectors and supports similarity search.
// The store is append/clear-only: the corpus is rebuilt wholesale when
// the ingested document set changes.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]Candidate, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// ChatModel streams a completion for a message list. The returned channel
// is closed when the response is finished; a stream, once started, is
// never restarted.
type ChatModel interface {
	Stream(ctx context.Context, messages []Message, opts GenOptions) (<-chan Delta, error)
}

// Summarizer produces a brief extract of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
