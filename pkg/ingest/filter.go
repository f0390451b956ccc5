package ingest

import "strings"

// DefaultKeywords is the base set used for filtering AI research/news
// content out of general-purpose sources.
var DefaultKeywords = []string{
	"artificial intelligence", "machine learning", "deep learning",
	"neural network", "LLM", "large language model", "GPT",
	"transformer", "diffusion", "computer vision", "NLP",
	"natural language processing", "generative AI", "genai",
	"AGI", "reinforcement learning", "fine-tuning", "fine tuning",
	"RAG", "retrieval augmented", "embedding", "inference",
	"AI agent", "agentic", "foundation model",
	"llama", "mistral", "gemini", "openai", "anthropic", "claude",
	"hugging face", "huggingface", "pytorch", "tensorflow",
	"multimodal", "vision language model", "VLM",
	"AI safety", "alignment", "benchmark", "state-of-the-art",
	"clinical AI", "drug discovery", "protein folding",
}

// Filter holds keyword lists for relevance matching.
type Filter struct {
	keywords []string
	exclude  []string
}

// NewFilter creates a filter with the default keywords plus extras.
func NewFilter(extraKeywords, excludeKeywords []string) *Filter {
	keywords := make([]string, len(DefaultKeywords))
	copy(keywords, DefaultKeywords)
	keywords = append(keywords, extraKeywords...)

	for i, kw := range keywords {
		keywords[i] = strings.ToLower(kw)
	}

	exclude := make([]string, len(excludeKeywords))
	for i, kw := range excludeKeywords {
		exclude[i] = strings.ToLower(kw)
	}

	return &Filter{keywords: keywords, exclude: exclude}
}

// Matches returns true if text contains relevant keywords and none of
// the exclusions.
func (f *Filter) Matches(text string) bool {
	lower := strings.ToLower(text)

	for _, ex := range f.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}

	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
