// Package envstore implements the "keyed lookup over a line-indexed text
// file" described abstractly in spec §1/§6: env.pandora, authorize.pandora
// and admin.pandora are all plain text files, one value per line, read and
// appended to with no richer format than that.
package envstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/relayforge/mediaforge/log"
)

// Line indices reserved in env.pandora, per spec §6.
const (
	EnvClientID = iota
	EnvClientSecret
	EnvRefreshToken
	EnvTokenURL
	EnvBotToken
	EnvUploadURL
	EnvPNCurlPath
	EnvPNMpegPath
	EnvPNP2PPath
)

// minEnvLines is the line count env.pandora must have before its values are
// trusted (one line per reserved index above); below this the original
// implementation logs a warning and returns an empty value set rather than
// risk returning an index that was never actually configured.
const minEnvLines = EnvPNP2PPath + 1

const (
	envFileName       = "env.pandora"
	adminClassName    = "admin"
	authorizeClassName = "authorize"
)

// Store is a keyed lookup over the line-indexed text files living under
// root (normally the coordinator's working directory).
type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, name)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// Env returns the line-indexed values from env.pandora. If the file has
// fewer than minEnvLines lines, it logs a warning and returns an empty
// slice rather than a partially-populated one a caller might index past
// the end of.
func (s *Store) Env() ([]string, error) {
	lines, err := readLines(s.path(envFileName))
	if err != nil {
		return nil, fmt.Errorf("envstore: reading %s: %w", envFileName, err)
	}
	if len(lines) < minEnvLines {
		log.LogNoRequestID("env.pandora has fewer than the expected lines", "path", s.path(envFileName), "lines", len(lines), "want", minEnvLines)
		return nil, nil
	}
	return lines, nil
}

// EnvValue returns a single indexed value from env.pandora, or "" if the
// file is short or the index is out of range.
func (s *Store) EnvValue(index int) (string, error) {
	lines, err := s.Env()
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(lines) {
		return "", nil
	}
	return lines[index], nil
}

// AddEnv appends one more line to env.pandora.
func (s *Store) AddEnv(value string) error {
	return appendLine(s.path(envFileName), value)
}

func classFile(class string) string {
	return class + ".pandora"
}

// Permission returns the set of principal ids listed in <class>.pandora
// (e.g. "authorize" or "admin").
func (s *Store) Permission(class string) ([]int64, error) {
	lines, err := readLines(s.path(classFile(class)))
	if err != nil {
		return nil, fmt.Errorf("envstore: reading %s: %w", classFile(class), err)
	}
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// IsAuthorized checks membership of id in the given permission class.
func (s *Store) IsAuthorized(class string, id int64) (bool, error) {
	ids, err := s.Permission(class)
	if err != nil {
		return false, err
	}
	for _, v := range ids {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}

// IsAdmin checks membership of id in the admin permission class.
func (s *Store) IsAdmin(id int64) (bool, error) {
	return s.IsAuthorized(adminClassName, id)
}

// Authorize appends id to the "authorize" permission class file (the
// "!authorize <user>" command from spec §4.9).
func (s *Store) Authorize(id int64) error {
	return appendLine(s.path(classFile(authorizeClassName)), strconv.FormatInt(id, 10))
}

func appendLine(path, value string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(value + "\n")
	return err
}
