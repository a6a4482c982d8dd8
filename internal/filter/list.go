package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func getDecoder(name string) (transform.Transformer, error) {
	var enc encoding.Encoding
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		// A byte order mark still wins, lists saved by Windows editors are often UTF-16.
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "utf-16le", "utf16le":
		enc = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "utf-16be", "utf16be":
		enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case "iso-8859-1", "latin1":
		enc = charmap.ISO8859_1
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	case "big5", "big-5", "cp950", "windows-950":
		enc = traditionalchinese.Big5
	default:
		return nil, fmt.Errorf("unsupported list encoding %q", name)
	}
	return enc.NewDecoder(), nil
}

// ReadList reads a document list file, one <series>.<document> per line.
// Blank lines are dropped.
func ReadList(path, encodingName string) ([]string, error) {
	decoder, err := getDecoder(encodingName)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document list: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(transform.NewReader(file, decoder))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read document list %s: %w", path, err)
	}
	return lines, nil
}
