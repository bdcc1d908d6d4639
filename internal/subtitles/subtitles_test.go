package subtitles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
Hello there, <i>friend</i>.

2
00:00:04,000 --> 00:00:06,250
{\an8}This is the second line.

3
00:00:07,000 --> 00:00:09,000
Multi-line
subtitle text.
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseSRTBasic(t *testing.T) {
	path := writeTemp(t, "sample.srt", sampleSRT)
	events, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, int64(1000), events[0].StartMs)
	assert.Equal(t, int64(3500), events[0].EndMs)
	assert.Equal(t, "Hello there, friend.", events[0].Plaintext)

	assert.Equal(t, "This is the second line.", events[1].Plaintext)
	assert.Equal(t, "Multi-line subtitle text.", events[2].Plaintext)
}

func TestParseSRTStripsBOM(t *testing.T) {
	withBOM := "﻿" + sampleSRT
	path := writeTemp(t, "bom.srt", withBOM)
	events, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, events, 3)
}

const sampleASS = `[Script Info]
Title: Test

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:01.00,0:00:03.50,Default,Alice,0,0,0,,Hello there friend
Dialogue: 0,0:00:04.00,0:00:06.00,Default,Bob,0,0,0,,{\i1}Second line{\i0}\Nwith a break
`

func TestParseASSBasic(t *testing.T) {
	path := writeTemp(t, "sample.ass", sampleASS)
	events, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, int64(1000), events[0].StartMs)
	assert.Equal(t, int64(3500), events[0].EndMs)
	assert.Equal(t, "Alice", events[0].Speaker)
	assert.Equal(t, "Hello there friend", events[0].Plaintext)

	assert.Equal(t, "Bob", events[1].Speaker)
	assert.Equal(t, "Second line with a break", events[1].Plaintext)
}

func TestParseRejectsUnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "sample.txt", "not a subtitle file")
	_, err := Parse(path)
	require.Error(t, err)
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.srt")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0xfd}, 0o644))
	_, err := Parse(path)
	require.Error(t, err)
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse("/nonexistent/path/file.srt")
	require.Error(t, err)
}
