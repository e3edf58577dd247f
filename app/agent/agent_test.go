package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbchat/types"
)

type stubGenerator struct {
	prompt string
	answer string
	err    error
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.answer, g.err
}

func TestFormatHistory(t *testing.T) {
	history := []types.ChatMessage{
		{Role: types.RoleUser, Content: "primera pregunta"},
		{Role: types.RoleAssistant, Content: "primera respuesta"},
		{Role: types.RoleUser, Content: "segunda pregunta"},
		{Role: types.RoleAssistant, Content: "segunda respuesta"},
		{Role: types.RoleUser, Content: "tercera pregunta"},
	}

	text, lastReply := FormatHistory(history)
	assert.Equal(t, "segunda respuesta", lastReply)

	lines := strings.Split(text, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Asistente: primera respuesta", lines[0])
	assert.Equal(t, "Usuario: tercera pregunta", lines[3])
}

func TestFormatHistoryEmpty(t *testing.T) {
	text, lastReply := FormatHistory(nil)
	assert.Equal(t, "(no previous messages)", text)
	assert.Empty(t, lastReply)
}

func TestFormatHistoryKeepsTail(t *testing.T) {
	long := strings.Repeat("x", 2000)
	history := []types.ChatMessage{{Role: types.RoleUser, Content: long}}

	text, _ := FormatHistory(history)
	assert.Len(t, text, historyCharLimit)
	assert.True(t, strings.HasSuffix(text, "x"))
}

func TestPreviousAnswerBlock(t *testing.T) {
	assert.Empty(t, PreviousAnswerBlock(""))

	block := PreviousAnswerBlock("  la respuesta anterior  ")
	assert.Contains(t, block, "la respuesta anterior")
	assert.Contains(t, block, "No repitas la misma redaccion")
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("", "(no previous messages)", "chunk uno\n\nchunk dos", "cuanto cuesta", false)

	assert.True(t, strings.HasPrefix(prompt, systemInstructions))
	assert.Contains(t, prompt, "CONTEXTO:\nchunk uno")
	assert.Contains(t, prompt, "NUEVA PREGUNTA DEL USUARIO:\ncuanto cuesta")
	assert.True(t, strings.HasSuffix(prompt, "RESPUESTA:"))
	assert.NotContains(t, prompt, courseResponseGuidelines)
}

func TestBuildPromptWithCourseIntent(t *testing.T) {
	prompt := BuildPrompt("previo", "historial", "contexto", "pregunta", true)
	assert.Contains(t, prompt, courseResponseGuidelines)
	assert.Contains(t, prompt, "previo")
}

func TestAnswerCapsContext(t *testing.T) {
	gen := &stubGenerator{answer: "ok"}
	a := NewAgent(gen)

	huge := strings.Repeat("palabra ", 1000)
	answer, err := a.Answer(context.Background(), "", "historial", []string{huge}, "pregunta", false)
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)

	start := strings.Index(gen.prompt, "CONTEXTO:\n")
	require.GreaterOrEqual(t, start, 0)
	rest := gen.prompt[start+len("CONTEXTO:\n"):]
	contextBlock := rest[:strings.Index(rest, "\n\nNUEVA PREGUNTA")]
	assert.LessOrEqual(t, len(contextBlock), maxContextChars)
}
