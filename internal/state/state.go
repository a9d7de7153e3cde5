// Package state persists the per-deployment random bucket suffix.
//
// The suffix is generated once for a project/environment pair and stored in
// a JSON file under the state directory so every later render produces the
// same bucket name:
//
//	store := state.NewStore(".wetwire-site")
//	suffix, err := store.Suffix("blog", "dev", false)
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"lukechampine.com/frand"
)

// SuffixLength is the number of characters in a generated suffix.
const SuffixLength = 8

// SuffixAlphabet holds the characters a suffix is drawn from.
const SuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// ErrNotFound is returned by Load when no state exists for the deployment.
var ErrNotFound = errors.New("state not found")

// NewSuffix returns SuffixLength characters drawn uniformly from
// SuffixAlphabet.
func NewSuffix() string {
	var sb strings.Builder
	sb.Grow(SuffixLength)
	for i := 0; i < SuffixLength; i++ {
		sb.WriteByte(SuffixAlphabet[frand.Intn(len(SuffixAlphabet))])
	}
	return sb.String()
}

// ValidSuffix reports whether s has the shape NewSuffix produces.
func ValidSuffix(s string) bool {
	if len(s) != SuffixLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(SuffixAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}

// Deployment is the persisted state of one project/environment pair.
type Deployment struct {
	Project     string    `json:"project"`
	Environment string    `json:"environment"`
	Suffix      string    `json:"suffix"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store reads and writes deployment state files in a directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore returns a Store rooted at dir. The directory is created on the
// first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Path returns the state file for a project/environment pair.
func (s *Store) Path(project, env string) string {
	return filepath.Join(s.dir, project+"-"+env+".json")
}

// Load reads the state for a project/environment pair. It returns
// ErrNotFound when no state file exists.
func (s *Store) Load(project, env string) (Deployment, error) {
	data, err := os.ReadFile(s.Path(project, env))
	if errors.Is(err, os.ErrNotExist) {
		return Deployment{}, ErrNotFound
	}
	if err != nil {
		return Deployment{}, fmt.Errorf("reading state: %w", err)
	}

	var d Deployment
	if err := json.Unmarshal(data, &d); err != nil {
		return Deployment{}, fmt.Errorf("decoding state %s: %w", s.Path(project, env), err)
	}
	if !ValidSuffix(d.Suffix) {
		return Deployment{}, fmt.Errorf("state %s holds invalid suffix %q", s.Path(project, env), d.Suffix)
	}
	return d, nil
}

// Save writes the state atomically via a temporary file and rename.
func (s *Store) Save(d Deployment) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	path := s.Path(d.Project, d.Environment)
	tmp, err := os.CreateTemp(s.dir, ".state-*")
	if err != nil {
		return fmt.Errorf("creating temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

// Suffix returns the persisted suffix for a project/environment pair,
// generating and saving a new one when none exists or replace is set.
func (s *Store) Suffix(project, env string, replace bool) (string, error) {
	if !replace {
		d, err := s.Load(project, env)
		if err == nil {
			return d.Suffix, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}

	d := Deployment{
		Project:     project,
		Environment: env,
		Suffix:      NewSuffix(),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.Save(d); err != nil {
		return "", err
	}
	return d.Suffix, nil
}

// Peek returns the persisted suffix without creating one.
func (s *Store) Peek(project, env string) (string, error) {
	d, err := s.Load(project, env)
	if err != nil {
		return "", err
	}
	return d.Suffix, nil
}
