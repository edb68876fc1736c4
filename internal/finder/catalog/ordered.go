package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AppCatalog is the apps{} object keyed by app id. It keeps declaration
// order so ranking ties resolve the same way on every run.
type AppCatalog struct {
	order []string
	byID  map[string]App
}

// NewAppCatalog builds a catalog from apps in the given order.
func NewAppCatalog(apps ...App) AppCatalog {
	c := AppCatalog{byID: make(map[string]App, len(apps))}
	for _, a := range apps {
		c.add(a.ID, a)
	}
	return c
}

func (c *AppCatalog) add(id string, app App) {
	if c.byID == nil {
		c.byID = make(map[string]App)
	}
	if _, exists := c.byID[id]; !exists {
		c.order = append(c.order, id)
	}
	c.byID[id] = app
}

// Get returns the app with the given id.
func (c AppCatalog) Get(id string) (App, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// All returns the apps in declaration order.
func (c AppCatalog) All() []App {
	out := make([]App, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Len returns the number of apps.
func (c AppCatalog) Len() int { return len(c.order) }

// UnmarshalJSON decodes the object and records key order.
func (c *AppCatalog) UnmarshalJSON(data []byte) error {
	*c = AppCatalog{}
	return decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var app App
		if err := json.Unmarshal(raw, &app); err != nil {
			return fmt.Errorf("apps.%s: %w", key, err)
		}
		c.add(key, app)
		return nil
	})
}

// UnmarshalYAML decodes a mapping node and records key order.
func (c *AppCatalog) UnmarshalYAML(node *yaml.Node) error {
	*c = AppCatalog{}
	return walkMapping(node, "apps", func(key string, value *yaml.Node) error {
		var app App
		if err := value.Decode(&app); err != nil {
			return fmt.Errorf("apps.%s: %w", key, err)
		}
		c.add(key, app)
		return nil
	})
}

// MarshalJSON encodes the catalog as an object in declaration order.
func (c AppCatalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(id)
		val, err := json.Marshal(c.byID[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Module is one "what's included" line of an app.
type Module struct {
	Name  string
	Value string
}

// Modules is an ordered name → description object.
type Modules []Module

// UnmarshalJSON accepts an object of strings (numbers are kept verbatim).
func (m *Modules) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	var out Modules
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(bytes.TrimSpace(raw))
		}
		out = append(out, Module{Name: key, Value: s})
		return nil
	})
	if err != nil {
		return err
	}
	*m = out
	return nil
}

// UnmarshalYAML accepts a mapping of scalars.
func (m *Modules) UnmarshalYAML(node *yaml.Node) error {
	var out Modules
	err := walkMapping(node, "modules", func(key string, value *yaml.Node) error {
		out = append(out, Module{Name: key, Value: value.Value})
		return nil
	})
	if err != nil {
		return err
	}
	*m = out
	return nil
}

// MarshalJSON encodes the modules as an object in declaration order.
func (m Modules) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, mod := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(mod.Name)
		val, _ := json.Marshal(mod.Value)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Pricing is the monthly price and the optional one-off lifetime price.
type Pricing struct {
	Monthly  float64 `json:"monthly" yaml:"monthly"`
	Lifetime float64 `json:"lifetime,omitempty" yaml:"lifetime"`
}

// UnmarshalJSON accepts both the legacy bare monthly number and the object form.
func (p *Pricing) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*p = Pricing{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] != '{' {
		var monthly float64
		if err := json.Unmarshal(trimmed, &monthly); err != nil {
			return fmt.Errorf("pricing: %w", err)
		}
		*p = Pricing{Monthly: monthly}
		return nil
	}
	type plain Pricing
	var out plain
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return fmt.Errorf("pricing: %w", err)
	}
	*p = Pricing(out)
	return nil
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (p *Pricing) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		monthly, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("pricing: %w", err)
		}
		*p = Pricing{Monthly: monthly}
		return nil
	}
	type plain Pricing
	var out plain
	if err := node.Decode(&out); err != nil {
		return err
	}
	*p = Pricing(out)
	return nil
}

func decodeOrderedObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func walkMapping(node *yaml.Node, what string, fn func(key string, value *yaml.Node) error) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: expected a mapping", what)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}
