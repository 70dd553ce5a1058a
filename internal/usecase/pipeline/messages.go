package pipeline

import "strings"

// Messages are the static replies of the pipeline.
type Messages struct {
	Fallback       string
	Suggestions    string
	Cancelled      string
	NoConversation string
	TryAgain       string
	Apology        string
	// FlowComplete closes a flow that ends without a final step. {summary} is
	// replaced with the trigger and the recorded answers.
	FlowComplete string
}

// DefaultMessages returns the built-in English replies.
func DefaultMessages() Messages {
	return Messages{
		Fallback:       "Sorry, I could not find an answer to that. Please rephrase or contact support.",
		Suggestions:    "I could not find an exact answer. Did you mean one of these?",
		Cancelled:      "The conversation has been cancelled.",
		NoConversation: "There is no conversation in progress.",
		TryAgain:       "Something went wrong on our side. Please try again.",
		Apology:        "Sorry, something went wrong. Please try again later.",
		FlowComplete:   "Thanks. We received: {summary}.",
	}
}

// withDefaults fills blank messages from DefaultMessages.
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&m.Fallback, d.Fallback)
	fill(&m.Suggestions, d.Suggestions)
	fill(&m.Cancelled, d.Cancelled)
	fill(&m.NoConversation, d.NoConversation)
	fill(&m.TryAgain, d.TryAgain)
	fill(&m.Apology, d.Apology)
	fill(&m.FlowComplete, d.FlowComplete)
	return m
}

func (m Messages) flowComplete(trigger string, answers []string) string {
	parts := append([]string{trigger}, answers...)
	return strings.ReplaceAll(m.FlowComplete, "{summary}", strings.Join(parts, " / "))
}
