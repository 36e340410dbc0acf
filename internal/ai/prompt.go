package ai

import "fmt"

// Prompt is everything sent for one completion.
type Prompt struct {
	System  string
	Context string
	History []Message
	Query   string
}

// Messages flattens the prompt: system instructions, prior turns, then
// the user question wrapped with the retrieved context.
func (p Prompt) Messages() []Message {
	out := make([]Message, 0, len(p.History)+2)
	if p.System != "" {
		out = append(out, Message{Role: RoleSystem, Content: p.System})
	}
	out = append(out, p.History...)

	user := p.Query
	if p.Context != "" {
		user = fmt.Sprintf("Context from available data sources:\n%s\n\nUser question: %s\n\n"+
			"Please provide a comprehensive answer based on the available information.", p.Context, p.Query)
	}
	return append(out, Message{Role: RoleUser, Content: user})
}

// Size is the prompt length in characters.
func (p Prompt) Size() int {
	n := 0
	for _, m := range p.Messages() {
		n += len(m.Content)
	}
	return n
}
