package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"turtlesoup/internal/logger"
)

// OpenAI asks an OpenAI-compatible chat model (DeepSeek by default) to referee.
type OpenAI struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    logger.For("judge"),
	}
}

// Evaluate runs one chat completion. Callers bound it through ctx.
func (j *OpenAI) Evaluate(ctx context.Context, req Request) (Verdict, error) {
	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
		Temperature: 1.0,
	})
	if err != nil {
		j.log.Warn().Err(err).Msg("chat completion failed")
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Verdict{}, fmt.Errorf("%w: empty completion", ErrUnavailable)
	}
	return ParseReply(resp.Choices[0].Message.Content), nil
}

func buildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("You are the referee of a lateral thinking puzzle (\"turtle soup\"). You know the whole story:\n")
	fmt.Fprintf(&b, "[Surface]: %s\n", req.Surface)
	fmt.Fprintf(&b, "[Bottom]: %s\n\n", req.Solution)
	fmt.Fprintf(&b, "The player's question or guess is: %q\n\n", req.Question)

	if len(req.History) > 0 {
		b.WriteString("Earlier questions and answers:\n")
		for i, ex := range req.History {
			who := ex.Identity
			if who == "" {
				who = "player"
			}
			fmt.Fprintf(&b, "%s asked %d: %s\nAnswer %d: %s\n", who, i+1, ex.Question, i+1, ex.Answer)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Rules:
1. First decide, using the current guess together with the earlier answers, whether the players have uncovered enough of the bottom to explain the whole story. If they have, reply "SUCCESS".
2. Otherwise reply with exactly one of:
   - "yes": the question or guess agrees with the bottom
   - "no": the question or guess contradicts the bottom
   - "irrelevant": the question does not help solve the puzzle or asks about details the story does not mention

Strictly:
- give no hints, explanations or extra information
- never reveal any part of the bottom the players have not guessed
- the reply is a single word: "SUCCESS", "yes", "no" or "irrelevant"
`)
	return b.String()
}
