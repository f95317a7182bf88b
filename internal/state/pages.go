package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Page is what the editor remembers about one IDs page between runs.
type Page struct {
	SheetURL  string
	Timestamp time.Time
	LastPos   int
	Spacing   int
	Positions map[string]int
}

type PageStore interface {
	Page(pageID int) (Page, error)
	SetPage(pageID int, p Page) error
}

// FileStore keeps page state in a JSON file keyed by page ID. Unknown keys
// in the file are preserved on write.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the state file location under the user config dir.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "spriteedit-state.json"
	}
	return filepath.Join(dir, "spriteedit", "state.json")
}

func (s *FileStore) read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []byte("{}"), nil
	}
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("state file %s is not valid json", s.path)
	}
	return data, nil
}

// Page returns the stored state for pageID, or the zero Page when nothing
// has been stored yet.
func (s *FileStore) Page(pageID int) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return Page{}, err
	}
	node := gjson.GetBytes(data, pagePath(pageID))
	if !node.Exists() {
		return Page{}, nil
	}
	p := Page{
		SheetURL: node.Get("sheetUrl").String(),
		LastPos:  int(node.Get("lastPos").Int()),
		Spacing:  int(node.Get("spacing").Int()),
	}
	if ts := node.Get("timestamp").String(); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			p.Timestamp = t.UTC()
		}
	}
	if pos := node.Get("positions"); pos.IsObject() {
		p.Positions = make(map[string]int)
		pos.ForEach(func(k, v gjson.Result) bool {
			p.Positions[k.String()] = int(v.Int())
			return true
		})
	}
	return p, nil
}

// SetPage stores p for pageID.
func (s *FileStore) SetPage(pageID int, p Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return err
	}
	base := pagePath(pageID)
	values := []struct {
		key   string
		value interface{}
	}{
		{"sheetUrl", p.SheetURL},
		{"lastPos", p.LastPos},
		{"spacing", p.Spacing},
		{"positions", positionsOrEmpty(p.Positions)},
	}
	if p.Timestamp.IsZero() {
		data, err = sjson.DeleteBytes(data, base+".timestamp")
	} else {
		data, err = sjson.SetBytes(data, base+".timestamp", p.Timestamp.UTC().Format(time.RFC3339))
	}
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	for _, v := range values {
		data, err = sjson.SetBytes(data, base+"."+v.key, v.value)
		if err != nil {
			return fmt.Errorf("update state %s: %w", v.key, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// pagePath keys pages by a non-numeric name so sjson creates objects
// rather than arrays.
func pagePath(pageID int) string {
	return "pages.id" + strconv.Itoa(pageID)
}

func positionsOrEmpty(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
