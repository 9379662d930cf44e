package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/code-reader/internal/versions"
)

func TestNewRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "version")
	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
}

func TestVersionCmd_JSON(t *testing.T) {
	t.Parallel()

	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--format", "json"})
	require.NoError(t, cmd.Execute())

	var info versions.VersionInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, versions.GetVersionInfo(), info)
}

func TestVersionCmd_Text(t *testing.T) {
	t.Parallel()

	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Empty(t, out.String())
}
