// Package podcast turns repository analyses into narrated audio episodes.
package podcast

import (
	"fmt"
	"strings"

	"github.com/nexo-app/nexo/pkg/protocol"
)

// BuildGeneralScript writes the narration for a whole-repository episode.
// Sections with no data are skipped so the narration stays fluent.
func BuildGeneralScript(analysis *protocol.RepositoryAnalysis) string {
	name := analysis.Name
	if name == "" {
		name = "this repository"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Welcome to the Repository Deep Dive Podcast. Today, we're exploring %s, "+
		"a fascinating project that showcases modern software development practices.\n\n", name)
	b.WriteString("Let me give you a comprehensive overview of what this project is all about.\n\n")

	if analysis.Description != "" {
		fmt.Fprintf(&b, "First, let's talk about what this project does. %s\n\n", analysis.Description)
	}
	if analysis.PrimaryLanguage != "" {
		fmt.Fprintf(&b, "This repository is primarily built with %s", analysis.PrimaryLanguage)
		if len(analysis.Technologies) > 0 {
			fmt.Fprintf(&b, ", and leverages several key technologies including %s",
				strings.Join(head(analysis.Technologies, 5), ", "))
		}
		b.WriteString(".\n\n")
	} else if len(analysis.Technologies) > 0 {
		fmt.Fprintf(&b, "The project leverages several key technologies including %s.\n\n",
			strings.Join(head(analysis.Technologies, 5), ", "))
	}

	b.WriteString("Now, let's dive into the architecture. ")
	if analysis.Architecture != "" {
		b.WriteString(analysis.Architecture)
	} else {
		b.WriteString("This project follows a modular architecture designed for scalability and maintainability.")
	}
	b.WriteString("\n\n")

	b.WriteString("One of the most interesting aspects is how data flows through the system. ")
	if analysis.DataFlow != "" {
		b.WriteString(analysis.DataFlow)
	} else {
		b.WriteString("The application processes data through well-defined layers, " +
			"ensuring separation of concerns and clean code organization.")
	}
	b.WriteString("\n\n")

	if analysis.FileStructure != "" {
		fmt.Fprintf(&b, "The project structure is organized as follows: %s\n\n", analysis.FileStructure)
	}

	b.WriteString("Let me highlight some of the key features that make this project stand out:\n")
	if len(analysis.KeyFeatures) > 0 {
		b.WriteString(formatListForSpeech(analysis.KeyFeatures))
	} else {
		b.WriteString("This project includes several notable features designed to provide a robust and efficient solution.")
	}
	b.WriteString("\n\n")

	if len(analysis.Dependencies) > 0 {
		fmt.Fprintf(&b, "The project relies on several important dependencies, including %s, "+
			"which work together to provide the necessary functionality.\n\n",
			strings.Join(head(analysis.Dependencies, 5), ", "))
	}

	b.WriteString("In terms of code organization, you'll find that the project follows best practices " +
		"with clear separation of concerns, making it easy to navigate and understand.\n\n")
	b.WriteString("This repository represents a well-thought-out solution that balances functionality, " +
		"performance, and maintainability. Whether you're looking to contribute, learn from the code, " +
		"or use it in your own projects, there's a lot to explore here.\n\n")
	b.WriteString("Thank you for joining me on this deep dive. I hope this overview gives you a solid " +
		"understanding of what this project brings to the table.")

	return b.String()
}

// BuildSpecificScript writes the narration for a single-question episode.
func BuildSpecificScript(question, context, answer string) string {
	var b strings.Builder
	b.WriteString("Welcome back to the Repository Deep Dive. Today, we're focusing on a specific " +
		"aspect of this project that you've asked about.\n\n")
	fmt.Fprintf(&b, "Your question was: %s\n\n", question)
	b.WriteString("Let me walk you through this in detail.\n\n")
	b.WriteString(answer)
	b.WriteString("\n\n")
	if context != "" {
		fmt.Fprintf(&b, "To give you some additional context: %s\n\n", context)
	}
	b.WriteString("I hope this explanation helps clarify things for you. If you have more questions " +
		"about other aspects of this repository, feel free to ask, and we can explore those areas together.\n\n")
	b.WriteString("Thanks for tuning in to this focused deep dive.")
	return b.String()
}

// formatListForSpeech joins items the way a narrator would read them:
// "a", "a and b", "a, b, and c".
func formatListForSpeech(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	parts := make([]string, len(items))
	copy(parts, items)
	parts[len(parts)-1] = "and " + parts[len(parts)-1]
	return strings.Join(parts, ", ")
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
