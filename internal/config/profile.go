package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Profile is the matcher's YAML-configurable behavior: which lines to
// process, how tolerant the time window is, and where the live feed comes
// from. Absent a profile file, defaults describe the FGC tracker.
type Profile struct {
	FeedURL        string   `yaml:"feedURL" validate:"required,url"`
	FeedKind       string   `yaml:"feedKind" validate:"oneof=geojson gtfsrt"`
	Lines          []string `yaml:"lines" validate:"min=1,dive,min=2"`
	WindowMinutes  int      `yaml:"windowMinutes" validate:"gt=0"`
	DelayThreshold int      `yaml:"delayThreshold" validate:"gte=1"`
	PollSeconds    int      `yaml:"pollSeconds" validate:"gt=0"`
}

// DefaultProfile returns the built-in FGC tracker profile.
func DefaultProfile() Profile {
	return Profile{
		FeedURL:        "https://geotren.fgc.cat/tracker/trens.geojson",
		FeedKind:       "geojson",
		Lines:          []string{"R5", "R6", "S3", "S4", "S8", "S9", "L8"},
		WindowMinutes:  10,
		DelayThreshold: 2,
		PollSeconds:    10,
	}
}

// LoadProfile reads and validates a YAML profile. An empty path returns
// the defaults. Fields omitted from the file keep their default values.
func LoadProfile(path string) (*Profile, error) {
	p := DefaultProfile()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profile: %w", err)
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse profile: %w", err)
		}
	}
	v := validator.New()
	if err := v.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return &p, nil
}
