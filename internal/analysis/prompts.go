package analysis

import (
	"fmt"
	"strings"

	"github.com/jonesrussell/linkguard/internal/domain"
)

func categoryList() string {
	return strings.Join(domain.Categories, ", ")
}

// fullAnalysisPrompt asks for the complete result in one call. Used when
// the content fits under the chunk threshold.
func fullAnalysisPrompt(content string) string {
	return fmt.Sprintf(`You are analyzing the text content of a web page that a short link points to.

Respond with a single JSON object and nothing else, in this exact shape:
{
  "summary": "two to three sentence summary of the page",
  "tags": ["up to five lowercase topical tags"],
  "safety": {
    "rating": 1-5 integer where 1 is dangerous (scams, malware, phishing) and 5 is clearly safe,
    "justification": "one sentence explaining the rating"
  },
  "classification": {
    "category": "one of: %s",
    "confidence": 0.0-1.0,
    "reason": "one sentence explaining the category"
  }
}

Page content:
%s`, categoryList(), content)
}

// firstChunkPrompt summarizes the opening chunk and, because it carries the
// page's most identifying content, also produces the safety and
// classification verdicts.
func firstChunkPrompt(chunk string) string {
	return fmt.Sprintf(`You are analyzing the beginning of a long web page that a short link points to.

Respond with a single JSON object and nothing else, in this exact shape:
{
  "summary": "two to three sentence summary of this portion",
  "safety": {
    "rating": 1-5 integer where 1 is dangerous (scams, malware, phishing) and 5 is clearly safe,
    "justification": "one sentence explaining the rating"
  },
  "classification": {
    "category": "one of: %s",
    "confidence": 0.0-1.0,
    "reason": "one sentence explaining the category"
  }
}

Page content (beginning):
%s`, categoryList(), chunk)
}

// chunkSummaryPrompt summarizes a middle or trailing chunk.
func chunkSummaryPrompt(chunk string) string {
	return fmt.Sprintf(`Summarize the following portion of a web page in two to three sentences. Respond with the summary text only.

%s`, chunk)
}

// reducePrompt combines per-chunk summaries into the final summary and tags.
func reducePrompt(summaries []string) string {
	var b strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&b, "Part %d: %s\n", i+1, s)
	}

	return fmt.Sprintf(`The following are summaries of consecutive parts of one web page.

Respond with a single JSON object and nothing else, in this exact shape:
{
  "summary": "two to three sentence summary of the whole page",
  "tags": ["up to five lowercase topical tags"]
}

Part summaries:
%s`, b.String())
}
