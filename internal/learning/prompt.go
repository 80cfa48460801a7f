package learning

import (
	"fmt"
	"strings"
)

const learningPrompt = `You are a software development and technical education expert.

Language: Your ENTIRE response MUST be in ENGLISH. If any source content is in another language, TRANSLATE everything to English.

Technologies detected in the repository: %s
%s
For EACH technology listed above, generate:

1. **summary**: A technical and objective summary (2-3 sentences) explaining:
   - What the technology is
   - What it is used for
   - Main use case

2. **resources**: Exactly 3 REAL and UP-TO-DATE learning resources:
   - 1 official documentation (type: "docs")
   - 1 reputable technical article/guide (type: "article")
   - 1 quality video tutorial (type: "video")

For each resource, provide:
- type: "docs", "article" or "video"
- title: Real title of the resource
- url: Real and functional URL
- description: Brief description (1 sentence)

IMPORTANT:
- Use real and up-to-date URLs (official documentation, well-known articles, YouTube videos)
- Prioritize reliable and current sources
- For videos, use reputable channels (freeCodeCamp, Traversy Media, Fireship, etc.)
- Be accurate with titles and URLs
- ALL content MUST be in English

Return ONLY valid JSON in the following format:
{
  "technologies": [
    {
      "technology": "Technology Name",
      "summary": "Technical summary...",
      "resources": [
        {"type": "docs", "title": "Real title", "url": "https://...", "description": "Brief description"},
        {"type": "article", "title": "Real title", "url": "https://...", "description": "Brief description"},
        {"type": "video", "title": "Real title", "url": "https://...", "description": "Brief description"}
      ]
    }
  ]
}

Generate for ALL technologies: %s`

func buildLearningPrompt(technologies []string, repoContext string) string {
	list := strings.Join(technologies, ", ")
	contextLine := ""
	if repoContext != "" {
		contextLine = fmt.Sprintf("Repository context: %s\n", repoContext)
	}
	return fmt.Sprintf(learningPrompt, list, contextLine, list)
}
