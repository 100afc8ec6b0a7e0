// Package i18n provides the localized user-facing strings for lock errors
// and events. Catalogs are embedded YAML files, one per language, with
// nested keys flattened to dotted form ("errors.response").
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used when a language or key is missing.
const DefaultLanguage = "en"

//go:embed locales/*.yaml
var localesFS embed.FS

// ErrUnknownLanguage is returned when no catalog exists for a language.
var ErrUnknownLanguage = errors.New("i18n: unknown language")

// Catalog holds the messages for every embedded language.
type Catalog struct {
	messages map[string]map[string]string
}

// Load parses the embedded catalogs.
func Load() (*Catalog, error) {
	return loadFS(localesFS, "locales")
}

func loadFS(fsys fs.FS, dir string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading locales: %w", err)
	}

	c := &Catalog{messages: make(map[string]map[string]string)}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", e.Name(), err)
		}
		flat := make(map[string]string)
		if err := flatten("", tree, flat); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", e.Name(), err)
		}
		c.messages[strings.TrimSuffix(e.Name(), ".yaml")] = flat
	}

	if _, ok := c.messages[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("%w: default catalog %q missing", ErrUnknownLanguage, DefaultLanguage)
	}
	return c, nil
}

func flatten(prefix string, tree map[string]any, out map[string]string) error {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			if err := flatten(key, val, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("key %s: unsupported value %T", key, v)
		}
	}
	return nil
}

// T returns the message for key in lang. It falls back to the default
// language, then to the key itself.
func (c *Catalog) T(lang, key string) string {
	if msg, ok := c.messages[normalize(lang)][key]; ok {
		return msg
	}
	if msg, ok := c.messages[DefaultLanguage][key]; ok {
		return msg
	}
	return key
}

// Has reports whether lang has a catalog.
func (c *Catalog) Has(lang string) bool {
	_, ok := c.messages[normalize(lang)]
	return ok
}

// Languages lists the available languages in sorted order.
func (c *Catalog) Languages() []string {
	out := make([]string, 0, len(c.messages))
	for lang := range c.messages {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Keys lists the keys defined for lang.
func (c *Catalog) Keys(lang string) []string {
	msgs := c.messages[normalize(lang)]
	out := make([]string, 0, len(msgs))
	for k := range msgs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// normalize reduces tags like "de-AT" or "en_GB" to the base language.
func normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
