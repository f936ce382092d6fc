package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// NameSource supplies the canonical, ordered category list.
type NameSource interface {
	Names() ([]string, error)
}

// NamesFile is a newline-delimited category list on disk.
type NamesFile string

// Names reads the file on every call so edits take effect without a restart.
func (f NamesFile) Names() ([]string, error) {
	file, err := os.Open(string(f))
	if err != nil {
		return nil, fmt.Errorf("open category names: %w", err)
	}
	defer file.Close()
	return ParseNames(file)
}

// StaticNames is an in-memory NameSource.
type StaticNames []string

func (s StaticNames) Names() ([]string, error) {
	return append([]string(nil), s...), nil
}

// ParseNames returns the trimmed, non-empty lines of r in order.
func ParseNames(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read category names: %w", err)
	}
	return names, nil
}
