//go:build ignore

package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muurk/aalink/internal/protocol"
)

// Statistics tracks decoding results
type Statistics struct {
	TotalFiles     int
	TotalFrames    int
	TotalMessages  int
	EncryptedCount int
	Channels       map[protocol.ChannelID]int
	FrameTypes     map[protocol.FrameType]int
	Failures       []Failure
}

// Failure records where a capture stopped making sense
type Failure struct {
	File  string
	Frame int
	Error string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_frames <directory-or-file>")
		fmt.Println("Example: validate_frames captures/")
		fmt.Println("         validate_frames phone-to-hu.bin")
		fmt.Println()
		fmt.Println("Files ending in .hex hold a hex dump of the byte stream, anything")
		fmt.Println("else is read as raw bytes of one direction of the link.")
		os.Exit(1)
	}

	path := os.Args[1]

	stats := Statistics{
		Channels:   make(map[protocol.ChannelID]int),
		FrameTypes: make(map[protocol.FrameType]int),
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Error accessing path: %v\n", err)
		os.Exit(1)
	}

	files := []string{path}
	if info.IsDir() {
		files = nil
		for _, pattern := range []string{"*.bin", "*.hex"} {
			matches, err := filepath.Glob(filepath.Join(path, pattern))
			if err != nil {
				fmt.Printf("Error finding captures: %v\n", err)
				os.Exit(1)
			}
			files = append(files, matches...)
		}
		if len(files) == 0 {
			fmt.Printf("No .bin or .hex captures found in %s\n", path)
			os.Exit(1)
		}
		sort.Strings(files)
	}

	fmt.Printf("=== aalink Frame Validator ===\n")
	fmt.Printf("Files to process: %d\n\n", len(files))

	for _, file := range files {
		processFile(file, &stats)
	}

	printStatistics(&stats)
	if len(stats.Failures) > 0 {
		os.Exit(2)
	}
}

func readCapture(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(filename, ".hex") {
		return data, nil
	}

	var clean strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		clean.WriteString(strings.Join(strings.Fields(line), ""))
	}
	return hex.DecodeString(clean.String())
}

// processFile decodes every frame and checks that FIRST/MIDDLE/LAST
// sequences never interleave across channels.
func processFile(filename string, stats *Statistics) {
	stats.TotalFiles++

	data, err := readCapture(filename)
	if err != nil {
		stats.Failures = append(stats.Failures, Failure{File: filename, Error: err.Error()})
		return
	}

	r := bytes.NewReader(data)
	var open *protocol.ChannelID
	for n := 1; ; n++ {
		frame, err := protocol.ReadFrame(r)
		if errors.Is(err, io.EOF) && r.Len() == 0 {
			break
		}
		if err != nil {
			stats.Failures = append(stats.Failures, Failure{File: filename, Frame: n, Error: err.Error()})
			return
		}

		h := frame.Header
		stats.TotalFrames++
		stats.Channels[h.ChannelID]++
		stats.FrameTypes[h.FrameType]++
		if h.EncryptionType == protocol.EncryptionEncrypted {
			stats.EncryptedCount++
		}

		switch h.FrameType {
		case protocol.FrameTypeBulk:
			if open != nil {
				break
			}
			stats.TotalMessages++
			continue
		case protocol.FrameTypeFirst:
			if open != nil {
				break
			}
			ch := h.ChannelID
			open = &ch
			continue
		case protocol.FrameTypeMiddle, protocol.FrameTypeLast:
			if open == nil || *open != h.ChannelID {
				break
			}
			if h.FrameType == protocol.FrameTypeLast {
				open = nil
				stats.TotalMessages++
			}
			continue
		}

		stats.Failures = append(stats.Failures, Failure{
			File:  filename,
			Frame: n,
			Error: fmt.Sprintf("%s interleaves an unfinished message", h),
		})
		return
	}

	if open != nil {
		stats.Failures = append(stats.Failures, Failure{
			File:  filename,
			Error: fmt.Sprintf("capture ends inside a %s message", *open),
		})
	}
}

func printStatistics(stats *Statistics) {
	fmt.Printf("\n========================================\n")
	fmt.Printf("VALIDATION RESULTS\n")
	fmt.Printf("========================================\n\n")

	fmt.Printf("Files Processed:    %d\n", stats.TotalFiles)
	fmt.Printf("Frames Decoded:     %d\n", stats.TotalFrames)
	fmt.Printf("Messages Completed: %d\n", stats.TotalMessages)
	fmt.Printf("Encrypted Frames:   %d\n", stats.EncryptedCount)

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("CHANNEL DISTRIBUTION\n")
	fmt.Printf("----------------------------------------\n")
	for _, ch := range protocol.Channels() {
		if count := stats.Channels[ch]; count > 0 {
			fmt.Printf("%-13s %d frames\n", ch, count)
		}
	}

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("FRAME TYPE DISTRIBUTION\n")
	fmt.Printf("----------------------------------------\n")
	for _, ft := range []protocol.FrameType{protocol.FrameTypeBulk, protocol.FrameTypeFirst, protocol.FrameTypeMiddle, protocol.FrameTypeLast} {
		fmt.Printf("%-7s %d\n", ft, stats.FrameTypes[ft])
	}

	if len(stats.Failures) > 0 {
		fmt.Printf("\n----------------------------------------\n")
		fmt.Printf("FAILURES (%d total)\n", len(stats.Failures))
		fmt.Printf("----------------------------------------\n")
		for i, f := range stats.Failures {
			fmt.Printf("\nFailure #%d:\n", i+1)
			fmt.Printf("  File: %s (frame %d)\n", f.File, f.Frame)
			fmt.Printf("  Error: %s\n", f.Error)
		}
	}

	fmt.Printf("\n========================================\n")
	if len(stats.Failures) == 0 {
		fmt.Printf("OK: every capture decoded cleanly\n")
	} else {
		fmt.Printf("ISSUES FOUND: %d captures failed to decode\n", len(stats.Failures))
	}
	fmt.Printf("========================================\n")
}
