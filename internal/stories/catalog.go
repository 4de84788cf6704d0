package stories

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

//go:embed default_stories.json
var defaultStories []byte

type Story struct {
	Title          string `json:"title"`
	Surface        string `json:"surface"`
	Bottom         string `json:"bottom"`
	SpecialMessage string `json:"special_message,omitempty"`
}

// Entry is a catalog listing line. It encodes as a two-element [id, title]
// array.
type Entry struct {
	ID    int
	Title string
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.ID, e.Title})
}

// Catalog is read-only after loading and safe for concurrent use. Story ids
// are positions in the catalog.
type Catalog struct {
	stories []Story
}

// Load reads a catalog from path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stories: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var list []Story
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing stories: %w", err)
	}
	if len(list) == 0 {
		return nil, errors.New("parsing stories: catalog is empty")
	}
	for i, s := range list {
		if strings.TrimSpace(s.Surface) == "" || strings.TrimSpace(s.Bottom) == "" {
			return nil, fmt.Errorf("parsing stories: story %d is missing its surface or bottom", i)
		}
	}
	return &Catalog{stories: list}, nil
}

func Default() *Catalog {
	c, err := Parse(defaultStories)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) List() []Entry {
	entries := make([]Entry, len(c.stories))
	for i, s := range c.stories {
		entries[i] = Entry{ID: i, Title: s.Title}
	}
	return entries
}

func (c *Catalog) Get(id int) (Story, bool) {
	if id < 0 || id >= len(c.stories) {
		return Story{}, false
	}
	return c.stories[id], true
}

func (c *Catalog) Len() int {
	return len(c.stories)
}
