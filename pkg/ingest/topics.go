package ingest

import (
	"math"
	"strings"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

// DefaultTopicKeywords maps topic identifiers to the cue phrases that
// vote for them. Config can extend or replace this set.
var DefaultTopicKeywords = map[string][]string{
	"llm": {
		"large language model", "llm", "gpt", "transformer", "chatbot",
		"token", "fine-tuning", "fine tuning", "rag", "retrieval augmented",
		"prompt", "claude", "gemini", "llama", "mistral",
	},
	"computer_vision": {
		"computer vision", "image generation", "object detection",
		"diffusion", "text-to-image", "text-to-video", "segmentation",
		"vision language model", "vlm",
	},
	"robotics": {
		"robot", "robotics", "embodied", "manipulation", "autonomous vehicle",
		"self-driving", "drone",
	},
	"healthcare_ai": {
		"clinical", "patient", "medical", "diagnosis", "drug discovery",
		"fda", "healthcare", "radiology", "protein",
	},
	"ai_policy": {
		"policy", "regulation", "governance", "executive order", "ai act",
		"safety", "alignment", "export control",
	},
	"ml_research": {
		"benchmark", "state-of-the-art", "sota", "reinforcement learning",
		"training", "architecture", "dataset", "scaling law", "optimization",
	},
}

// TopicScores assigns topic association scores for a cluster from its
// title and takeaway. A topic scores by cue hits with diminishing
// returns; topics with no hits are omitted.
func TopicScores(c *cluster.Cluster, keywords map[string][]string) map[string]float64 {
	if keywords == nil {
		keywords = DefaultTopicKeywords
	}

	text := strings.ToLower(c.Title + " " + c.Takeaway)
	scores := make(map[string]float64)

	for topic, cues := range keywords {
		hits := 0
		for _, cue := range cues {
			if strings.Contains(text, cue) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		scores[topic] = math.Min(1.0, 0.3+0.2*float64(hits))
	}

	return scores
}
