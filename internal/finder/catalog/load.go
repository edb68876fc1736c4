package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"smartfinder_backend/platform/apperr"
	"smartfinder_backend/platform/validator"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a configuration document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

const (
	msgUnavailable = "smart finder configuration unavailable"
	maxDocumentSize = 2 << 20
)

var docValidator = validator.New()

func unavailable(op string, err error) error {
	return apperr.Unavailable(msgUnavailable, err).WithOp(op)
}

// Parse decodes and validates a document.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		err = dec.Decode(&doc)
	}
	if err != nil {
		return nil, unavailable("catalog.Parse", fmt.Errorf("decode: %w", err))
	}
	if err := Validate(&doc); err != nil {
		return nil, unavailable("catalog.Parse", err)
	}
	return &doc, nil
}

// Validate checks tags and cross references. It also fills each app's ID
// from its catalog key when the entry omits it.
func Validate(doc *Document) error {
	if err := docValidator.Struct(doc); err != nil {
		return fmt.Errorf("invalid document: %s", validator.Describe(err))
	}
	if id := doc.Questions[0].ID; id != SectorQuestionID {
		return fmt.Errorf("invalid document: first question must be %q, got %q", SectorQuestionID, id)
	}
	if doc.Apps.Len() == 0 {
		return fmt.Errorf("invalid document: apps must not be empty")
	}

	for _, id := range doc.Apps.order {
		app := doc.Apps.byID[id]
		if app.ID == "" {
			app.ID = id
		} else if app.ID != id {
			return fmt.Errorf("invalid document: apps.%s declares id %q", id, app.ID)
		}
		if err := docValidator.Struct(app); err != nil {
			return fmt.Errorf("invalid document: apps.%s: %s", id, validator.Describe(err))
		}
		for _, fq := range app.FormQuestions {
			if fq.Type == FieldSelect && len(fq.Options) == 0 {
				return fmt.Errorf("invalid document: apps.%s.form_questions.%s: select needs options", id, fq.ID)
			}
		}
		doc.Apps.byID[id] = app
	}

	if doc.Fallback.Enabled {
		if len(doc.Fallback.Apps) == 0 {
			return fmt.Errorf("invalid document: fallback is enabled without apps")
		}
		for _, id := range doc.Fallback.Apps {
			if _, ok := doc.Apps.Get(id); !ok {
				return fmt.Errorf("invalid document: fallback app %q is not in the catalog", id)
			}
		}
	}
	return nil
}

// FormatFor guesses the format from a file name or content type.
func FormatFor(nameOrContentType string) Format {
	lower := strings.ToLower(nameOrContentType)
	if strings.Contains(lower, "yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// LoadFile reads a document from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, unavailable("catalog.LoadFile", err)
	}
	return Parse(data, FormatFor(path))
}

// Fetch downloads a document. Any 2xx response whose body parses is
// accepted. The format is guessed from the content type, then from the URL
// path, and the other format is tried when the guess does not parse.
func Fetch(ctx context.Context, client *http.Client, rawURL string) (*Document, error) {
	const op = "catalog.Fetch"
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, unavailable(op, err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, unavailable(op, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, unavailable(op, err)
	}

	format := remoteFormat(resp.Header.Get("Content-Type"), req.URL.Path)
	doc, err := Parse(data, format)
	if err == nil {
		return doc, nil
	}
	if alt, altErr := Parse(data, otherFormat(format)); altErr == nil {
		return alt, nil
	}
	return nil, err
}

func remoteFormat(contentType, path string) Format {
	lower := strings.ToLower(contentType)
	switch {
	case strings.Contains(lower, "yaml"), strings.Contains(lower, "yml"):
		return FormatYAML
	case strings.Contains(lower, "json"):
		return FormatJSON
	}
	return FormatFor(path)
}

func otherFormat(f Format) Format {
	if f == FormatYAML {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads source as a URL when it has an http(s) scheme and as a file path otherwise.
func Load(ctx context.Context, client *http.Client, source string) (*Document, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return Fetch(ctx, client, source)
	}
	return LoadFile(source)
}
