// Package subtitles parses .srt and .ass files into a stream of
// dialogue.Event (spec.md §1: "Subtitle parsing (consumed as a stream of
// timed dialogue events)" — an ambient input-handling concern carried
// regardless of the Non-goal excluding ASR-driven subtitle generation).
// Grounded on the teacher's line-oriented scanning idiom in analyzer.go
// (bufio.Scanner over a text corpus, one state-machine pass, no external
// parser library) since no subtitle-parsing library appears anywhere in
// the example pack.
package subtitles

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"cinecut/internal/cinerr"
	"cinecut/internal/dialogue"
)

var tagRe = regexp.MustCompile(`\{[^}]*\}|<[^>]*>`)

// Parse reads path (.srt or .ass, case-insensitive extension) and returns
// its dialogue events in file order. UTF-8 is assumed after a BOM strip;
// anything that fails to decode as UTF-8 is reported as a cinerr.Subtitle
// error (spec.md §6: "SubtitleError — encoding unrecoverable after UTF-8 +
// charset detection").
func Parse(path string) ([]dialogue.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cinerr.Subtitle(path, "file not found or unreadable", err)
	}
	data = stripBOM(data)
	if !utf8.Valid(data) {
		return nil, cinerr.Subtitle(path, "subtitle file is not valid UTF-8", nil)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt":
		return parseSRT(string(data))
	case ".ass", ".ssa":
		return parseASS(string(data))
	default:
		return nil, cinerr.Subtitle(path, "unsupported subtitle extension, expected .srt or .ass", nil)
	}
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

var srtTimeRe = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// parseSRT implements the standard block grammar: an index line, a
// timecode line, one or more text lines, then a blank separator.
func parseSRT(text string) ([]dialogue.Event, error) {
	var events []dialogue.Event
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var startMs, endMs int64
	var textLines []string
	inBlock := false

	flush := func() {
		if len(textLines) == 0 {
			return
		}
		plaintext := tagRe.ReplaceAllString(strings.Join(textLines, " "), "")
		plaintext = strings.TrimSpace(plaintext)
		if plaintext != "" {
			events = append(events, dialogue.NewEvent(startMs, endMs, plaintext, ""))
		}
		textLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			inBlock = false
			continue
		}
		if m := srtTimeRe.FindStringSubmatch(line); m != nil {
			flush()
			startMs = srtTimecodeMs(m[1], m[2], m[3], m[4])
			endMs = srtTimecodeMs(m[5], m[6], m[7], m[8])
			inBlock = true
			continue
		}
		if !inBlock {
			continue // skip the numeric index line (or any stray junk before a timecode)
		}
		textLines = append(textLines, line)
	}
	flush()
	return events, nil
}

func srtTimecodeMs(h, m, s, ms string) int64 {
	hh, _ := strconv.ParseInt(h, 10, 64)
	mm, _ := strconv.ParseInt(m, 10, 64)
	ss, _ := strconv.ParseInt(s, 10, 64)
	mss, _ := strconv.ParseInt(ms, 10, 64)
	return ((hh*60+mm)*60+ss)*1000 + mss
}

// parseASS reads the [Events] section's Dialogue: lines. Format is
// determined from the preceding "Format:" line so Name/Text column order
// is never hardcoded against a specific Aegisub export variant.
func parseASS(text string) ([]dialogue.Event, error) {
	var events []dialogue.Event
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inEvents := false
	startIdx, endIdx, nameIdx, textIdx := -1, -1, -1, -1

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "[events]"):
			inEvents = true
			continue
		case strings.HasPrefix(line, "[") && inEvents:
			inEvents = false
			continue
		}
		if !inEvents {
			continue
		}
		if strings.HasPrefix(lower, "format:") {
			cols := strings.Split(line[len("Format:"):], ",")
			for i, c := range cols {
				switch strings.ToLower(strings.TrimSpace(c)) {
				case "start":
					startIdx = i
				case "end":
					endIdx = i
				case "name":
					nameIdx = i
				case "text":
					textIdx = i
				}
			}
			continue
		}
		if !strings.HasPrefix(lower, "dialogue:") || textIdx < 0 {
			continue
		}
		fields := strings.SplitN(line[len("Dialogue:"):], ",", textIdx+1)
		if len(fields) <= textIdx {
			continue
		}
		startMs, err := assTimecodeMs(strings.TrimSpace(fields[startIdx]))
		if err != nil {
			continue
		}
		endMs, err := assTimecodeMs(strings.TrimSpace(fields[endIdx]))
		if err != nil {
			continue
		}
		speaker := ""
		if nameIdx >= 0 && nameIdx < len(fields) {
			speaker = strings.TrimSpace(fields[nameIdx])
		}
		plaintext := tagRe.ReplaceAllString(fields[textIdx], "")
		plaintext = strings.ReplaceAll(plaintext, `\N`, " ")
		plaintext = strings.ReplaceAll(plaintext, `\n`, " ")
		plaintext = strings.TrimSpace(plaintext)
		if plaintext == "" {
			continue
		}
		events = append(events, dialogue.NewEvent(startMs, endMs, plaintext, speaker))
	}
	return events, nil
}

var assTimeRe = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})\.(\d{2})$`)

func assTimecodeMs(t string) (int64, error) {
	m := assTimeRe.FindStringSubmatch(t)
	if m == nil {
		return 0, fmt.Errorf("malformed ASS timecode %q", t)
	}
	h, _ := strconv.ParseInt(m[1], 10, 64)
	mm, _ := strconv.ParseInt(m[2], 10, 64)
	s, _ := strconv.ParseInt(m[3], 10, 64)
	centi, _ := strconv.ParseInt(m[4], 10, 64)
	return ((h*60+mm)*60+s)*1000 + centi*10, nil
}
