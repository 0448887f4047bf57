package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToken(t *testing.T) {
	assert.Equal(t, NotificationModify, Token(DomainNotification, ActionModify))
	assert.Equal(t, MemberView, Token(DomainMember, ActionView))
}

func TestIsKnown(t *testing.T) {
	for _, tok := range All() {
		assert.True(t, IsKnown(tok), tok)
	}
	assert.False(t, IsKnown("billing_modify"))
	assert.False(t, IsKnown(""))
}

func TestAllReturnsFreshCopy(t *testing.T) {
	first := All()
	assert.Len(t, first, 12)
	first[0] = "mutated"
	assert.NotContains(t, All(), "mutated")
}
