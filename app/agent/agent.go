package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"kbchat/types"
)

const (
	maxHistoryLines  = 4
	historyCharLimit = 800
	maxContextChars  = 2200
)

type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Agent turns a retrieved context and the conversation history into a prompt
// and asks the chat model for the answer.
type Agent struct {
	client generator
	logger *slog.Logger
}

func NewAgent(client generator) *Agent {
	return &Agent{
		client: client,
		logger: slog.Default(),
	}
}

// FormatHistory renders the last few messages as dialog lines and returns the
// most recent assistant reply separately. Long histories keep their tail; the
// start of an old conversation matters less than its end.
func FormatHistory(history []types.ChatMessage) (string, string) {
	start := len(history) - maxHistoryLines
	if start < 0 {
		start = 0
	}
	var lines []string
	for _, msg := range history[start:] {
		prefix := "Asistente"
		if msg.Role == types.RoleUser {
			prefix = "Usuario"
		}
		lines = append(lines, prefix+": "+strings.TrimSpace(msg.Content))
	}

	var lastAssistantReply string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == types.RoleAssistant {
			lastAssistantReply = history[i].Content
			break
		}
	}

	text := "(no previous messages)"
	if len(lines) > 0 {
		text = strings.Join(lines, "\n")
	}
	return truncateTail(text, historyCharLimit), lastAssistantReply
}

// PreviousAnswerBlock builds the re-ask instruction carrying the assistant's
// last reply, so repeated questions get a reworded answer.
func PreviousAnswerBlock(lastAssistantReply string) string {
	if lastAssistantReply == "" {
		return ""
	}
	return "Tu respuesta anterior fue:\n\"\"\"\n" +
		strings.TrimSpace(lastAssistantReply) +
		"\n\"\"\"\n" +
		"El usuario volvio a consultar o indico que no entendio. " +
		"No repitas la misma redaccion ni estructura; explicalo con lenguaje mas simple, pasos o ejemplos, pero mantente preciso."
}

// BuildPrompt assembles the final prompt. Empty sections are dropped.
func BuildPrompt(previousAnswerBlock, historyText, contextText, userMessage string, courseIntent bool) string {
	courseInstruction := ""
	if courseIntent {
		courseInstruction = courseResponseGuidelines
	}
	sections := []string{
		systemInstructions,
		courseInstruction,
		previousAnswerBlock,
		"Conversacion hasta ahora:\n" + historyText,
		"CONTEXTO:\n" + contextText,
		"NUEVA PREGUNTA DEL USUARIO:\n" + userMessage,
		"RESPUESTA:",
	}
	var kept []string
	for _, section := range sections {
		if section != "" {
			kept = append(kept, section)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n\n"))
}

// Answer generates the reply for an assembled context. The context block is
// capped so the prompt stays inside the model window.
func (a *Agent) Answer(ctx context.Context, previousAnswerBlock, historyText string, contextChunks []string, userMessage string, courseIntent bool) (string, error) {
	contextText := truncateHead(strings.Join(contextChunks, "\n\n"), maxContextChars)
	prompt := BuildPrompt(previousAnswerBlock, historyText, contextText, userMessage, courseIntent)

	start := time.Now()
	answer, err := a.client.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	a.logger.Info("answer generated",
		"prompt_tokens", countTokens(prompt), "took", time.Since(start))
	return answer, nil
}

func truncateHead(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

func truncateTail(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[len(text)-limit:]
}

// countTokens estimates the prompt size with the cl100k tokenizer. Ollama
// models tokenize differently, the number is for capacity logging only.
func countTokens(prompt string) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return -1
	}
	return len(enc.Encode(prompt, nil, nil))
}
