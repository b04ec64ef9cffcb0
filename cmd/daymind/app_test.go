package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFilesKeepsExistingValues(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".daymind"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".daymind", ".env"),
		[]byte("DAYMIND_TEST_FROM_HOME=home\nDAYMIND_TEST_PRESET=file\n"), 0644))

	work := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(work, ".env"), []byte("DAYMIND_TEST_FROM_CWD=cwd\n"), 0644))
	prevDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(work))
	t.Cleanup(func() { _ = os.Chdir(prevDir) })

	t.Setenv("DAYMIND_TEST_PRESET", "env")
	t.Setenv("DAYMIND_TEST_FROM_HOME", "")
	os.Unsetenv("DAYMIND_TEST_FROM_HOME")
	t.Setenv("DAYMIND_TEST_FROM_CWD", "")
	os.Unsetenv("DAYMIND_TEST_FROM_CWD")

	loaded := loadEnvFiles()
	assert.Len(t, loaded, 2)
	assert.Equal(t, "home", os.Getenv("DAYMIND_TEST_FROM_HOME"))
	assert.Equal(t, "cwd", os.Getenv("DAYMIND_TEST_FROM_CWD"))
	assert.Equal(t, "env", os.Getenv("DAYMIND_TEST_PRESET"))
}

func TestChoiceLists(t *testing.T) {
	assert.Contains(t, moodList(), "😰 stressed")
	assert.Equal(t, "friendly, excited, calm, serious, empathetic", emotionList())
}
