package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"up", "down", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
		assert.NotEmpty(t, cmd.Short)
		assert.NotNil(t, cmd.RunE)
	}
}

func TestRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	for _, name := range []string{"up", "down", "version"} {
		t.Run(name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs([]string{name})
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})

			err := root.Execute()
			assert.ErrorIs(t, err, errMissingDatabaseURL)
		})
	}
}

func TestRejectsExtraArguments(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"up", "extra", "--database-url", "postgres://localhost/db"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	assert.Error(t, root.Execute())
}

func TestUnknownCommand(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"sideways"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}
