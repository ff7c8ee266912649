package responder

import "strings"

// SystemInstruction is the persona every generation call runs under.
const SystemInstruction = "You are a compassionate and supportive assistant trained in cognitive behavioral therapy (CBT) techniques. Always respond in a positive, encouraging way and offer helpful strategies to manage thoughts, feelings, and behaviors."

// ContextSize is how many remembered messages are recalled per request.
const ContextSize = 3

// ComposeInput builds the generation input from the user's message and the
// recalled passages.
func ComposeInput(message string, passages []string) string {
	var sb strings.Builder
	sb.WriteString("User message: ")
	sb.WriteString(message)
	sb.WriteString("\n\nHelpful context:\n")
	sb.WriteString(strings.Join(passages, "\n"))
	return sb.String()
}
