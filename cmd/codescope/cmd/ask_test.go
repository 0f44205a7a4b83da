package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskCmd_Flags(t *testing.T) {
	cmd := newAskCmd()

	model := cmd.Flags().Lookup("model")
	require.NotNil(t, model)
	assert.Equal(t, "", model.DefValue)
}

func TestAskCmd_NoIndex(t *testing.T) {
	tmp := isolateEnv(t)
	workDir := filepath.Join(tmp, "bare")
	require.NoError(t, os.MkdirAll(workDir, 0o755))
	chdir(t, workDir)

	_, err := runCommand(t, "ask", "what does this service do")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	_, err := runCommand(t, "ask")
	require.Error(t, err)
}
