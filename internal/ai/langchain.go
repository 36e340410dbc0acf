package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// LangchainProvider adapts any langchaingo model.
type LangchainProvider struct {
	llm     llms.Model
	name    string
	options Options
}

func NewLangchainProvider(name string, model llms.Model, opts Options) *LangchainProvider {
	return &LangchainProvider{llm: model, name: name, options: opts}
}

// NewLangchainOllama builds a langchaingo Ollama client.
func NewLangchainOllama(baseURL, model string, opts Options) (*LangchainProvider, error) {
	m, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create langchain ollama model: %w", err)
	}
	return NewLangchainProvider("langchain", m, opts), nil
}

func (p *LangchainProvider) content(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case RoleSystem:
			role = llms.ChatMessageTypeSystem
		case RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

func (p *LangchainProvider) callOptions(extra ...llms.CallOption) []llms.CallOption {
	var opts []llms.CallOption
	if p.options.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(p.options.Temperature))
	}
	if p.options.TopP > 0 {
		opts = append(opts, llms.WithTopP(p.options.TopP))
	}
	return append(opts, extra...)
}

func (p *LangchainProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := p.llm.GenerateContent(ctx, p.content(messages), p.callOptions()...)
	if err != nil {
		return "", classify(ctx, p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", upstreamError(ctx, p.name, errors.New("no response choices"))
	}
	return resp.Choices[0].Content, nil
}

func (p *LangchainProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		stream := llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			if !send(ctx, chunks, string(chunk)) {
				return ctx.Err()
			}
			return nil
		})
		if _, err := p.llm.GenerateContent(ctx, p.content(messages), p.callOptions(stream)...); err != nil {
			errs <- classify(ctx, p.name, err)
		}
	}()

	return chunks, errs
}
