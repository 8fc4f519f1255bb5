// Package prompt assembles the system and user prompts for per-heading
// summarization. All functions are pure.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Default budgets for prompt assembly.
const (
	// DefaultTextLimit is the character budget for document text.
	DefaultTextLimit = 4000

	// DefaultHeadingLimit is the total heading budget across all levels.
	DefaultHeadingLimit = 10
)

// headingLevels orders buckets from most to least important.
var headingLevels = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

// CollectHeadings selects up to limit headings, filled greedily from the most
// important level (h1) to the least (h6). Per-level document order is
// preserved; a level is truncated when it would exceed the remaining budget.
func CollectHeadings(headings map[string][]string, limit int) map[string][]string {
	if limit <= 0 {
		limit = DefaultHeadingLimit
	}

	collected := make(map[string][]string)
	remaining := limit
	for _, level := range headingLevels {
		if remaining == 0 {
			break
		}
		bucket := headings[level]
		if len(bucket) == 0 {
			continue
		}
		take := len(bucket)
		if take > remaining {
			take = remaining
		}
		collected[level] = append([]string(nil), bucket[:take]...)
		remaining -= take
	}
	return collected
}

// Truncate returns the first limit characters of s. The cut always lands on
// a rune boundary, so the result is valid UTF-8.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultTextLimit
	}
	if len(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// FirstHeading returns the first heading of the most important populated
// level, or "" when the outline is empty.
func FirstHeading(headings map[string][]string) string {
	for _, level := range headingLevels {
		if bucket := headings[level]; len(bucket) > 0 {
			return bucket[0]
		}
	}
	return ""
}

const systemPromptBase = `You are a professional content analyst and information specialist who excels at extracting key information from documents.

You are provided with both the full text and a structured list of headings from the document.

Your role is to carefully analyze the content under each heading and produce clear, concise summaries that capture the essential information and main points.`

const contextSection = `

Here is some relevant input and output context from similar documents that may help you understand the content better:

### RELEVANT CONTEXT ###
INPUT CONTEXT:
%s

OUTPUT CONTEXT:
%s`

const exampleRawText = `Introduction to Machine Learning ( ML ) represents a fundamental shift in how computers operate. Instead of following explicit programming instructions, these systems learn patterns from data. This revolutionary approach has transformed various industries and continues to drive innovation in technology. The field combines statistics, computer science, and data analysis to create powerful predictive models.

Among the various approaches in machine learning, Supervised Learning Methods stands as one of the most widely used techniques. In this method, algorithms learn from labeled datasets where the desired output is known. For instance, when training a model to recognize spam emails, we provide examples of both spam and legitimate emails. The algorithm learns to identify patterns and features that distinguish between these categories. Common algorithms include decision trees, which make sequential decisions based on data features, and support vector machines, which find optimal boundaries between different classes of data.

The impact of Deep Learning Applications on modern technology cannot be overstated. In healthcare, deep learning models analyze medical images to detect diseases with remarkable accuracy. Self-driving cars use deep learning to interpret their environment and make real-time decisions. Natural language processing applications powered by deep learning have made machine translation and voice assistants part of our daily lives.

Neural Networks and Deep Learning are at the core of these advances. These networks consist of layers of interconnected nodes, each performing specific computations. The "deep" in deep learning refers to the multiple layers that allow these networks to learn increasingly complex features. For example, in image recognition, early layers might detect simple edges, while deeper layers recognize complex objects like faces or vehicles.`

const exampleInput = `{"h1": ["Introduction to Machine Learning"], "h2": ["Supervised Learning Methods", "Neural Networks and Deep Learning"], "h3": ["Deep Learning Applications"]}`

const exampleOutput = `{"information": {"headings": {"Introduction to Machine Learning": "Machine learning represents a fundamental shift in how computers operate, enabling systems to learn patterns from data rather than following explicit programming instructions. This field combines statistics, computer science, and data analysis to create powerful predictive models.", "Supervised Learning Methods": "Supervised learning algorithms learn from labeled datasets where the desired output is known, using techniques like decision trees and support vector machines to identify patterns and make predictions. This approach is widely used for classification tasks like spam detection.", "Neural Networks and Deep Learning": "Neural networks are mathematical models inspired by the human brain, consisting of multiple layers of interconnected nodes that process information with increasing complexity. These layers progress from detecting simple features to recognizing complex patterns in data.", "Deep Learning Applications": "Deep learning has revolutionized multiple sectors, from healthcare (medical image analysis) to autonomous vehicles and natural language processing, enabling sophisticated real-time decision making and analysis."}}}`

const userPromptTemplate = `Your task is to analyze the following text and extract key information for each heading:

### CURRENT CONTENT TO ANALYZE ###
TEXT:
%s

HEADINGS:
%s

### EXAMPLES ###
EXAMPLE RAW TEXT:
%s

EXAMPLE INPUT:
%s

EXAMPLE OUTPUT:
%s

### REQUIREMENTS ###
For each heading:
1. Create a clear, factually accurate summary (1-2 sentences) that captures key points
2. Prioritize content based on heading importance (h1 > h2 > h3 etc.)
3. Ensure output follows the exact JSON structure shown in the example
4. Do not include any text or formatting other than the JSON structure`

// Build assembles the system and user prompts.
//
// headings is the collected subset (see CollectHeadings); text is already
// truncated. When both context blocks are non-empty the system prompt is
// extended with a delimited RELEVANT CONTEXT section quoting them verbatim.
// The user prompt steers the model toward a fixed JSON shape with a worked
// example; the instructions forbid markdown fencing because the consumer
// strips only specific fence markers.
func Build(headings map[string][]string, text, outputContext, inputContext string) (system, user string) {
	system = systemPromptBase
	if outputContext != "" {
		system += fmt.Sprintf(contextSection, inputContext, outputContext)
	}

	user = fmt.Sprintf(userPromptTemplate,
		text,
		renderHeadings(headings),
		exampleRawText,
		exampleInput,
		exampleOutput,
	)
	return system, user
}

// renderHeadings encodes the heading subset as JSON. Map keys marshal in
// sorted order, which for h1..h6 is importance order.
func renderHeadings(headings map[string][]string) string {
	if len(headings) == 0 {
		return "{}"
	}
	b, err := json.Marshal(headings)
	if err != nil {
		// map[string][]string cannot fail to marshal; keep the prompt usable.
		return fmt.Sprintf("%v", headings)
	}
	return strings.TrimSpace(string(b))
}
