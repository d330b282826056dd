package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// BookMetadata is the optional per-book metadata file. Every field is
// optional; absence falls back to folder-derived defaults.
type BookMetadata struct {
	Title       string        `json:"title" yaml:"title"`
	Description string        `json:"description" yaml:"description"`
	Author      string        `json:"author" yaml:"author"`
	Tags        []string      `json:"tags" yaml:"tags"`
	PageOrder   []string      `json:"pageOrder" yaml:"pageOrder"`
	Settings    *BookSettings `json:"settings" yaml:"settings"`
	CreatedAt   string        `json:"createdAt" yaml:"createdAt"`
	BabyName    string        `json:"babyName" yaml:"babyName"`
	BirthDate   string        `json:"birthDate" yaml:"birthDate"`
	Parents     string        `json:"parents" yaml:"parents"`
}

// BookSettings are viewer hints carried through to the manifest consumer.
type BookSettings struct {
	PageTransition  string `json:"pageTransition" yaml:"pageTransition"`
	Autoplay        bool   `json:"autoplay" yaml:"autoplay"`
	ShowPageNumbers bool   `json:"showPageNumbers" yaml:"showPageNumbers"`
	AutoplayDelay   int    `json:"autoplayDelay" yaml:"autoplayDelay"`
}

// loadMetadata reads metadata.json (or metadata.yaml) from the book
// folder. A missing file yields an empty metadata; a malformed file is
// reported so the caller can log and continue with defaults.
func loadMetadata(dir string) (BookMetadata, error) {
	var meta BookMetadata

	if data, err := os.ReadFile(filepath.Join(dir, "metadata.json")); err == nil {
		if err := json.Unmarshal(data, &meta); err != nil {
			return BookMetadata{}, err
		}
		return meta, nil
	}

	for _, name := range []string{"metadata.yaml", "metadata.yml"} {
		if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			if err := yaml.Unmarshal(data, &meta); err != nil {
				return BookMetadata{}, err
			}
			return meta, nil
		}
	}

	return meta, nil
}

// loadDescription resolves a book description from the first description
// file found in the folder. Absence yields an empty string.
func loadDescription(dir string) string {
	for _, name := range []string{"description.md", "README.md", "description.txt"} {
		if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

// PageDoc is the parsed sidecar markdown of one page.
type PageDoc struct {
	Title       string
	Alt         string
	Description string
}

// loadPageDoc parses the sidecar <imageBaseName>.md next to an image:
// the first level-one heading becomes the page title, a line prefixed
// "Alt: " becomes the alt text, and the full content is the description.
// A missing file yields empty strings.
func loadPageDoc(dir, imageBase string) PageDoc {
	data, err := os.ReadFile(filepath.Join(dir, imageBase+".md"))
	if err != nil {
		return PageDoc{}
	}
	return parsePageDoc(string(data))
}

func parsePageDoc(content string) PageDoc {
	doc := PageDoc{Description: strings.TrimSpace(content)}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if doc.Title == "" && strings.HasPrefix(line, "# ") {
			doc.Title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
		if doc.Alt == "" && strings.HasPrefix(line, "Alt: ") {
			doc.Alt = strings.TrimSpace(strings.TrimPrefix(line, "Alt: "))
		}
	}
	return doc
}
