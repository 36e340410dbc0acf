package chat

import (
	"github.com/suPer8Hu/orgai/internal/ai"
	"github.com/suPer8Hu/orgai/internal/mode"
	"github.com/suPer8Hu/orgai/internal/retrieval"
	"github.com/suPer8Hu/orgai/internal/session"
)

var systemPrompts = map[mode.Mode]string{
	mode.Policy: "You are an assistant for company policy questions. Answer from the policy documents " +
		"provided as context. Name the policy you rely on together with its category and author. " +
		"If the documents do not cover the question, say so instead of guessing.",
	mode.Schema: "You are a database assistant. Answer from the database objects provided as context. " +
		"When describing a table or view, list its columns with their types and nullability. " +
		"Never invent tables or columns and never propose statements that modify data.",
	mode.Documentation: "You are an assistant for internal technical documentation. Answer from the " +
		"documentation excerpts provided as context and mention which file each fact comes from.",
}

// SystemPrompt returns the instructions for a concrete mode.
func SystemPrompt(m mode.Mode) string {
	return systemPrompts[m]
}

func buildPrompt(m mode.Mode, query string, passages []retrieval.Passage, history []session.Turn) ai.Prompt {
	msgs := make([]ai.Message, 0, len(history))
	for _, t := range history {
		role := ai.RoleUser
		if t.Role == session.RoleAssistant {
			role = ai.RoleAssistant
		}
		msgs = append(msgs, ai.Message{Role: role, Content: t.Text})
	}
	return ai.Prompt{
		System:  SystemPrompt(m),
		Context: retrieval.FormatContext(m, passages),
		History: msgs,
		Query:   query,
	}
}
