package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestRedactPIIValue(t *testing.T) {
	// Address-bearing keys get masked outright
	assert.Equal(t, "al***@acme.io", redactPIIValue("from_email", "alice@acme.io"))
	assert.Equal(t, "bo***@acme.io", redactPIIValue("sender", "bob4@acme.io"))
	assert.Equal(t, "ca***@acme.io", redactPIIValue("best_contact", "carol@acme.io"))

	// Embedded addresses in generic fields are masked in place
	got := redactPIIValue("detail", "reply sent to dave@acme.io yesterday")
	assert.Equal(t, "reply sent to da***@acme.io yesterday", got)

	// Clean values pass through
	assert.Equal(t, "acme.io", redactPIIValue("domain", "acme.io"))
}
