package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixPatterns(t *testing.T) {
	assert.Equal(t,
		[]string{"faq/%", "cursos/%"},
		PrefixPatterns([]string{"faq", "cursos/"}))
	assert.Empty(t, PrefixPatterns(nil))
}

func TestKeywordPatterns(t *testing.T) {
	assert.Equal(t,
		[]string{"%cype%", "%hormigon%"},
		KeywordPatterns([]string{" CYPE ", "hormigon", "  "}))
	assert.Nil(t, KeywordPatterns([]string{"", "   "}))
}
