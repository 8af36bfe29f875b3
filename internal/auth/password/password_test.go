package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=1,p=4$"))

	assert.True(t, Verify("correct horse battery", encoded))
	assert.False(t, Verify("wrong", encoded))
}

func TestVerifyRejectsMalformed(t *testing.T) {
	for _, encoded := range []string{"", "plain", "$bcrypt$x$y$z$w", "$argon2id$v=18$m=1,t=1,p=1$c2FsdA$a2V5"} {
		assert.False(t, Verify("pw", encoded), encoded)
	}
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate("short"), ErrTooShort)
	assert.ErrorIs(t, Validate("       x"), ErrTooShort)
	assert.NoError(t, Validate("long-enough"))
}
