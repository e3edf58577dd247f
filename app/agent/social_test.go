package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"kbchat/textutil"
)

func TestDetectSocialResponse(t *testing.T) {
	tests := map[string]struct {
		message  string
		expected string
	}{
		"plain greeting":     {"hola", replyHello},
		"stretched greeting": {"Holaaaa!!", replyHello},
		"accented greeting":  {"Buen día", replyMorning},
		"thanks":             {"muchas gracias por todo", replyThanks},
		"courtesy phrase":    {"que pase buen dia", "Que tengas un excelente día."},
		"farewell":           {"chau", replyBye},
		"acknowledgement":    {"ok", replyAck},

		"question is not social":            {"hola, ¿cuánto cuesta el curso?", ""},
		"informative marker blocks pattern": {"gracias, necesito informacion de precios", ""},
		"real question":                     {"quiero saber sobre los cursos de estructuras", ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectSocialResponse(tt.message))
		})
	}
}

func TestIsGreeting(t *testing.T) {
	assert.True(t, IsGreeting(textutil.NormalizeSocial("Hola!")))
	assert.True(t, IsGreeting(textutil.NormalizeSocial("buenas")))
	assert.False(t, IsGreeting(textutil.NormalizeSocial("gracias")))
	assert.False(t, IsGreeting(textutil.NormalizeSocial("chau")))
}

func TestAppendContactPrompt(t *testing.T) {
	withPrompt := AppendContactPrompt("Ofrecemos 9 cursos")
	assert.True(t, strings.HasPrefix(withPrompt, "Ofrecemos 9 cursos. "))
	assert.True(t, strings.HasSuffix(withPrompt, ContactPrompt))

	// Final punctuation is kept as-is.
	assert.Equal(t, "Listo! "+ContactPrompt, AppendContactPrompt("Listo!"))

	// Never appended twice.
	assert.Equal(t, withPrompt, AppendContactPrompt(withPrompt))

	// Empty answers become just the prompt.
	assert.Equal(t, ContactPrompt, AppendContactPrompt("   "))
}
