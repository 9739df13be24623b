package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRotatingFile_RotatesAtLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gigboard.log")
	w, err := openRotatingFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	chunk := bytes.Repeat([]byte("x"), 1<<20)
	for i := 0; i < 8; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}
	_, err = os.Stat(path + ".1")
	require.True(t, os.IsNotExist(err))

	_, err = w.Write([]byte("next\n"))
	require.NoError(t, err)

	rotated, err := os.Stat(path + ".1")
	require.NoError(t, err)
	require.EqualValues(t, 8<<20, rotated.Size())

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "next\n", string(current))
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLogLevel("debug").String())
	require.Equal(t, "WARN", parseLogLevel("warn").String())
	require.Equal(t, "INFO", parseLogLevel("verbose").String())
}
