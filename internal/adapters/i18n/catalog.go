// Package i18n holds the console message catalog and the per-page display
// locale that the bootstrap sets.
package i18n

import (
	"embed"
	"fmt"
	"log/slog"
	"path"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"console/internal/domain/locale"
)

//go:embed messages/*.yaml
var messageFiles embed.FS

// Catalog is the loaded message bundle. Safe for concurrent use.
type Catalog struct {
	bundle *goi18n.Bundle
}

// NewCatalog loads the embedded message files.
// POST: French is the default language; every supported locale has a file
func NewCatalog() (*Catalog, error) {
	bundle := goi18n.NewBundle(language.French)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	entries, err := messageFiles.ReadDir("messages")
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	for _, e := range entries {
		name := path.Join("messages", e.Name())
		buf, err := messageFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := bundle.ParseMessageFileBytes(buf, name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return &Catalog{bundle: bundle}, nil
}

// Translate renders message id in the given locale, falling back to French
// and finally to the id itself.
func (c *Catalog) Translate(tag, id string, data map[string]any) string {
	cfg := &goi18n.LocalizeConfig{MessageID: id, TemplateData: data}
	loc := goi18n.NewLocalizer(c.bundle, locale.BCP47(tag).String())
	msg, err := loc.Localize(cfg)
	if err == nil {
		return msg
	}
	fallback := goi18n.NewLocalizer(c.bundle, locale.Fallback)
	if msg, err := fallback.Localize(cfg); err == nil {
		return msg
	}
	slog.Warn("missing_translation", "id", id, "locale", tag)
	return id
}

// Display returns a display locale starting at the fallback.
func (c *Catalog) Display() *Display {
	return &Display{catalog: c, tag: locale.Fallback}
}

// Display is the display locale of one page load.
type Display struct {
	catalog *Catalog
	mu      sync.RWMutex
	tag     string
}

// SetLocale switches the display locale; unsupported tags are normalized.
func (d *Display) SetLocale(tag string) {
	d.mu.Lock()
	d.tag = locale.Normalize(tag)
	d.mu.Unlock()
}

// Locale returns the current display locale.
func (d *Display) Locale() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tag
}

// T translates id in the current display locale.
func (d *Display) T(id string) string {
	return d.catalog.Translate(d.Locale(), id, nil)
}

// Tf translates id with template data.
func (d *Display) Tf(id string, data map[string]any) string {
	return d.catalog.Translate(d.Locale(), id, data)
}
