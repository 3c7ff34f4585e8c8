package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/epion-news/epion/internal/sources"
)

// Article is the part of an article row needed to annotate its AI summary.
type Article struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category Category `json:"category"`
	Summary  string   `json:"summary"`
}

// ChatMessage is one stored chat turn. Sources is the numbered list the
// assistant reply cites.
type ChatMessage struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Sources   []sources.Source `json:"sources"`
}

// Category is an article category. The articles.category column holds either
// a bare name ("World News") or an object ({"slug":"world","name":"World
// News"}); both decode to the same Category here so nothing downstream has to
// check the shape again.
type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// IsZero reports whether the article has no category.
func (c Category) IsZero() bool { return c.Slug == "" && c.Name == "" }

// UnmarshalJSON accepts null, a string or an object.
func (c *Category) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Category{}
		return nil
	}

	switch data[0] {
	case '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return fmt.Errorf("category name: %w", err)
		}
		name = strings.TrimSpace(name)
		*c = Category{Slug: slugify(name), Name: name}
		return nil
	case '{':
		var obj struct {
			Slug string `json:"slug"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("category object: %w", err)
		}
		obj.Name = strings.TrimSpace(obj.Name)
		if obj.Slug == "" {
			obj.Slug = slugify(obj.Name)
		}
		if obj.Name == "" {
			obj.Name = obj.Slug
		}
		*c = Category{Slug: obj.Slug, Name: obj.Name}
		return nil
	default:
		return fmt.Errorf("category: unsupported JSON value %s", data)
	}
}

func slugify(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, "-")
}
