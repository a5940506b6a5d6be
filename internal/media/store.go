package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists binary artifacts (illustrations, composited pages, PDFs)
// on the local filesystem and resolves refs to public URLs.
type Store struct {
	Root      string
	PublicURL string
}

func NewStore(root, publicURL string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media root %s: %w", root, err)
	}
	return &Store{Root: root, PublicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *Store) path(ref string) string {
	return filepath.Join(s.Root, filepath.Clean("/"+ref))
}

func (s *Store) Save(ref string, data []byte) error {
	p := s.path(ref)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create media dir for %s: %w", ref, err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("failed to write media %s: %w", ref, err)
	}
	return nil
}

func (s *Store) Load(ref string) ([]byte, error) {
	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to read media %s: %w", ref, err)
	}
	return data, nil
}

func (s *Store) Exists(ref string) bool {
	_, err := os.Stat(s.path(ref))
	return err == nil
}

// URL resolves a ref to its public URL.
func (s *Store) URL(ref string) string {
	return s.PublicURL + "/" + strings.TrimLeft(ref, "/")
}
