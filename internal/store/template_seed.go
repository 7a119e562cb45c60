package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/samims/notify/internal/model"
)

type seedEntry struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	Locale          string  `yaml:"locale"`
	ChannelType     string  `yaml:"channel_type"`
	SubjectTemplate *string `yaml:"subject_template"`
	BodyTemplate    string  `yaml:"body_template"`
	Active          *bool   `yaml:"active"`
}

// LoadTemplateSeed reads template definitions from a YAML file.
// Entries without an explicit active flag are active.
func LoadTemplateSeed(path string) ([]model.Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template seed: %w", err)
	}
	return parseTemplateSeed(raw)
}

func parseTemplateSeed(raw []byte) ([]model.Template, error) {
	var doc struct {
		Templates []seedEntry `yaml:"templates"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse template seed: %w", err)
	}

	out := make([]model.Template, 0, len(doc.Templates))
	for i, entry := range doc.Templates {
		if entry.ID == "" {
			return nil, fmt.Errorf("template seed entry %d: id is required", i)
		}
		ch, err := model.ParseChannel(entry.ChannelType)
		if err != nil {
			return nil, fmt.Errorf("template seed entry %d (%s): %w", i, entry.ID, err)
		}
		out = append(out, model.Template{
			ID:              entry.ID,
			Name:            entry.Name,
			Locale:          entry.Locale,
			ChannelType:     ch,
			SubjectTemplate: entry.SubjectTemplate,
			BodyTemplate:    entry.BodyTemplate,
			Active:          entry.Active == nil || *entry.Active,
		})
	}
	return out, nil
}

// TemplateSaveFunc writes one template definition
type TemplateSaveFunc func(ctx context.Context, t model.Template) error

// SeedTemplates writes every template in the seed file through save and
// returns how many were written. Pass the resolver's Save so cached lookups
// are invalidated.
func SeedTemplates(ctx context.Context, save TemplateSaveFunc, path string) (int, error) {
	templates, err := LoadTemplateSeed(path)
	if err != nil {
		return 0, err
	}
	for _, t := range templates {
		if err := save(ctx, t); err != nil {
			return 0, fmt.Errorf("seed template %s: %w", t.ID, err)
		}
	}
	return len(templates), nil
}
