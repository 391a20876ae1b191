// Package props reads and edits flat .properties files.
//
// One "key = value" (or "key: value") entry per logical line. Lines starting
// with '#' or ';' are comments, blank lines are skipped, and a line starting
// with whitespace continues the previous value, joined with a newline. Keys
// keep their case. Edits rewrite the whole file through a temporary file that
// is renamed over the original.
package props

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/logging"
)

// Entry is one key/value pair in file order
type Entry struct {
	Key   string
	Value string
}

// Parse reads entries in file order. A repeated key keeps its first position
// and takes the last value.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	index := make(map[string]int)
	current := -1

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			if current < 0 {
				return nil, errors.NewValidationError("continuation line without a preceding entry", nil).
					WithContext("line", lineNo)
			}
			entries[current].Value += "\n" + strings.TrimSpace(line)
			continue
		}

		sep := strings.IndexAny(line, "=:")
		if sep < 0 {
			return nil, errors.NewValidationError(fmt.Sprintf("line %d is not a key = value entry", lineNo), nil).
				WithContext("line", lineNo).
				WithContext("content", line)
		}
		key := strings.TrimSpace(line[:sep])
		value := strings.TrimSpace(line[sep+1:])
		if key == "" {
			return nil, errors.NewValidationError(fmt.Sprintf("line %d has an empty key", lineNo), nil).
				WithContext("line", lineNo)
		}

		if i, ok := index[key]; ok {
			entries[i].Value = value
			current = i
			continue
		}
		index[key] = len(entries)
		current = len(entries)
		entries = append(entries, Entry{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Format renders entries back to file text. Multi-line values are written as
// tab-indented continuation lines.
func Format(entries []Entry) []byte {
	var buf bytes.Buffer
	for _, entry := range entries {
		buf.WriteString(entry.Key)
		buf.WriteString(" = ")
		buf.WriteString(strings.ReplaceAll(entry.Value, "\n", "\n\t"))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Store is a properties file on disk
type Store struct {
	path      string
	createNew bool
	logger    logging.Logger
}

// NewStore binds a store to path. With createNew the file is created empty on
// first access when missing.
func NewStore(path string, createNew bool, logger logging.Logger) *Store {
	return &Store{
		path:      path,
		createNew: createNew,
		logger:    logger,
	}
}

func (s *Store) Path() string {
	return s.path
}

// Items returns every entry in file order
func (s *Store) Items() ([]Entry, error) {
	if err := s.ensureExists(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path)
	if err != nil {
		return nil, errors.NewPropertiesIOError("cannot open properties file", err).WithContext("path", s.path)
	}
	defer file.Close()

	entries, err := Parse(file)
	if err != nil {
		if errors.IsValidationError(err) {
			return nil, err
		}
		return nil, errors.NewPropertiesIOError("cannot read properties file", err).WithContext("path", s.path)
	}
	s.logger.Debugf("Read properties, path: %s, entries: %d", s.path, len(entries))
	return entries, nil
}

// Set creates or replaces key
func (s *Store) Set(key, value string) error {
	return s.edit(func(entries []Entry) []Entry {
		for i := range entries {
			if entries[i].Key == key {
				entries[i].Value = value
				return entries
			}
		}
		return append(entries, Entry{Key: key, Value: value})
	})
}

// Delete removes key; deleting an absent key is not an error
func (s *Store) Delete(key string) error {
	return s.edit(func(entries []Entry) []Entry {
		kept := entries[:0]
		for _, entry := range entries {
			if entry.Key != key {
				kept = append(kept, entry)
			}
		}
		return kept
	})
}

func (s *Store) edit(mutate func([]Entry) []Entry) error {
	entries, err := s.Items()
	if err != nil {
		return err
	}
	entries = mutate(entries)

	if err := renameio.WriteFile(s.path, Format(entries), 0o644, renameio.WithTempDir(filepath.Dir(s.path))); err != nil {
		s.logger.Errorf("Failed to replace properties file, path: %s, error: %v", s.path, err)
		return errors.NewPropertiesIOError("cannot replace properties file", err).WithContext("path", s.path)
	}
	s.logger.Infof("Properties file updated, path: %s, entries: %d", s.path, len(entries))
	return nil
}

func (s *Store) ensureExists() error {
	if !s.createNew {
		return nil
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.NewPropertiesIOError("cannot access properties file", err).WithContext("path", s.path)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.NewPropertiesIOError("cannot create properties directory", err).WithContext("path", s.path)
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.NewPropertiesIOError("cannot create properties file", err).WithContext("path", s.path)
	}
	s.logger.Infof("Created empty properties file, path: %s", s.path)
	return file.Close()
}
