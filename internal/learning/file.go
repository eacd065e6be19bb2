package learning

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// profileDocument is the on-disk layout of one profile file.
type profileDocument struct {
	Profile  *Record    `yaml:"profile,omitempty"`
	Feedback []Feedback `yaml:"feedback,omitempty"`
}

// FileRepository stores each profile as <dir>/<name>.yaml.
type FileRepository struct {
	mu  sync.Mutex
	dir string
}

// NewFileRepository creates a repository rooted at dir. The directory is
// created on first write.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

func (f *FileRepository) path(name string) (string, error) {
	if err := ValidateProfileName(name); err != nil {
		return "", err
	}
	return filepath.Join(f.dir, name+".yaml"), nil
}

func (f *FileRepository) read(name string) (profileDocument, error) {
	var doc profileDocument
	p, err := f.path(name)
	if err != nil {
		return doc, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("reading profile file: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: %s: %w", ErrCorruptRecord, p, err)
	}
	return doc, nil
}

func (f *FileRepository) write(name string, doc profileDocument) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("creating profile dir: %w", err)
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}

	// Write atomically using temp file + rename.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing profile file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("replacing profile file: %w", err)
	}
	return nil
}

func (f *FileRepository) LoadProfile(_ context.Context, name string) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read(name)
	if err != nil {
		return Record{}, err
	}
	if doc.Profile == nil {
		return Record{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return *doc.Profile, nil
}

func (f *FileRepository) SaveProfile(_ context.Context, r Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read(r.Name)
	if err != nil {
		if !errors.Is(err, ErrCorruptRecord) {
			return err
		}
		// A corrupt file is overwritten; its feedback is unrecoverable.
		doc = profileDocument{}
	}
	doc.Profile = &r
	return f.write(r.Name, doc)
}

func (f *FileRepository) AppendFeedback(_ context.Context, profile string, events []Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read(profile)
	if err != nil {
		return err
	}
	doc.Feedback = append(doc.Feedback, events...)
	return f.write(profile, doc)
}

func (f *FileRepository) ListFeedback(_ context.Context, profile string) ([]Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read(profile)
	if err != nil {
		return nil, err
	}
	return doc.Feedback, nil
}

func (f *FileRepository) DeleteProfile(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing profile file: %w", err)
	}
	return nil
}
