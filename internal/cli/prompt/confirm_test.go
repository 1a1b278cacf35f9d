package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmLabel(t *testing.T) {
	assert.Equal(t, `Delete snapshot "aged" [y/N]`, confirmLabel(`Delete snapshot "aged"`, false))
	assert.Equal(t, "Continue [Y/n]", confirmLabel("Continue", true))
}

func TestConfirmWithForce(t *testing.T) {
	ok, err := ConfirmWithForce("Delete run r-1", true)
	require.NoError(t, err)
	assert.True(t, ok)
}
