package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewritersCmd_ListsCatalog(t *testing.T) {
	cmd := newRewritersCmd()

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "process-substitution")
	assert.Contains(t, output, "here-string")
	assert.Contains(t, output, "conditional-expression")
	assert.Contains(t, output, "array")
	assert.Contains(t, output, "test_command")
}
