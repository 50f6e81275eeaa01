package seed

import (
	_ "embed"
	"fmt"

	"agora/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed forums.yml
var builtInForums []byte

// ForumFixture describes one forum to create.
type ForumFixture struct {
	Title       string           `yaml:"title"`
	Description string           `yaml:"description"`
	Category    string           `yaml:"category"`
	Tags        []string         `yaml:"tags"`
	Rules       []RuleFixture    `yaml:"rules"`
	Settings    *SettingsFixture `yaml:"settings"`
}

// RuleFixture is a rule attached to a fixture forum.
type RuleFixture struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// SettingsFixture overrides the default forum settings.
type SettingsFixture struct {
	AllowImages          bool `yaml:"allowImages"`
	AllowPolls           bool `yaml:"allowPolls"`
	AllowAnonymousPosts  bool `yaml:"allowAnonymousPosts"`
	RequireModeration    bool `yaml:"requireModeration"`
	RestrictedToVerified bool `yaml:"restrictedToVerified"`
}

// Model converts the fixture into forum settings.
func (s *SettingsFixture) Model() *models.ForumSettings {
	if s == nil {
		return nil
	}
	return &models.ForumSettings{
		AllowImages:          s.AllowImages,
		AllowPolls:           s.AllowPolls,
		AllowAnonymousPosts:  s.AllowAnonymousPosts,
		RequireModeration:    s.RequireModeration,
		RestrictedToVerified: s.RestrictedToVerified,
	}
}

type forumFile struct {
	Forums []ForumFixture `yaml:"forums"`
}

// ParseForumFixtures decodes a forums YAML document.
func ParseForumFixtures(raw []byte) ([]ForumFixture, error) {
	var file forumFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse forum fixtures: %w", err)
	}
	for i, f := range file.Forums {
		if f.Title == "" {
			return nil, fmt.Errorf("forum fixture %d has no title", i)
		}
	}
	return file.Forums, nil
}

// BuiltInForums returns the forums bundled with the binary.
func BuiltInForums() ([]ForumFixture, error) {
	return ParseForumFixtures(builtInForums)
}
