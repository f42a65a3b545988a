package engine

import (
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/vilterp/nltemplate/pkg/lang"
	"gopkg.in/yaml.v3"
)

// Settings configure how the engine instantiates and trains a template.
type Settings struct {
	Optimizer    string  `yaml:"optimizer"`
	LearningRate float64 `yaml:"learning_rate"`
	Epochs       int     `yaml:"epochs"`
	// ErrorFunction is the training loss.
	ErrorFunction string `yaml:"error_function"`
	Initializer   string `yaml:"initializer"`
	Seed          int64  `yaml:"seed"`
	// Applied to relations with no activation of their own. Empty means
	// the engine's default.
	DefaultActivation  string `yaml:"default_activation"`
	DefaultAggregation string `yaml:"default_aggregation"`
}

var (
	optimizers     = []string{"sgd", "adam"}
	errorFunctions = []string{"squared_diff", "crossentropy", "softentropy"}
	initializers   = []string{"uniform", "normal", "glorot", "he", "constant"}
)

type UnknownSettingError struct {
	Name string
}

func (e *UnknownSettingError) Error() string {
	return fmt.Sprintf("unknown setting: %s", e.Name)
}

type InvalidSettingError struct {
	Name   string
	Reason string
}

func (e *InvalidSettingError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Name, e.Reason)
}

func DefaultSettings() Settings {
	return Settings{
		Optimizer:     "adam",
		LearningRate:  0.001,
		Epochs:        100,
		ErrorFunction: "squared_diff",
		Initializer:   "uniform",
		Seed:          0,
	}
}

func knownSettings() map[string]bool {
	return map[string]bool{
		"optimizer":           true,
		"learning_rate":       true,
		"epochs":              true,
		"error_function":      true,
		"initializer":         true,
		"seed":                true,
		"default_activation":  true,
		"default_aggregation": true,
	}
}

// NewSettings overlays options on DefaultSettings. Keys are the yaml names
// of the fields; an unknown key fails before anything else is checked.
func NewSettings(options map[string]interface{}) (Settings, error) {
	known := knownSettings()
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !known[name] {
			return Settings{}, &UnknownSettingError{Name: name}
		}
	}

	data, err := yaml.Marshal(options)
	if err != nil {
		return Settings{}, errors.Wrap(err, "encoding settings")
	}
	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, errors.Wrap(err, "decoding settings")
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// LoadSettings reads settings from a YAML file of top-level keys.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, errors.Wrap(err, "reading settings file")
	}
	options := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &options); err != nil {
		return Settings{}, errors.Wrapf(err, "parsing settings file %s", path)
	}
	return NewSettings(options)
}

func (s Settings) Validate() error {
	if !oneOf(s.Optimizer, optimizers) {
		return &InvalidSettingError{Name: "optimizer", Reason: fmt.Sprintf("%q is not one of %v", s.Optimizer, optimizers)}
	}
	if s.LearningRate <= 0 {
		return &InvalidSettingError{Name: "learning_rate", Reason: "must be positive"}
	}
	if s.Epochs <= 0 {
		return &InvalidSettingError{Name: "epochs", Reason: "must be positive"}
	}
	if !oneOf(s.ErrorFunction, errorFunctions) {
		return &InvalidSettingError{Name: "error_function", Reason: fmt.Sprintf("%q is not one of %v", s.ErrorFunction, errorFunctions)}
	}
	if !oneOf(s.Initializer, initializers) {
		return &InvalidSettingError{Name: "initializer", Reason: fmt.Sprintf("%q is not one of %v", s.Initializer, initializers)}
	}
	if s.DefaultActivation != "" {
		if _, err := lang.ParseActivation(s.DefaultActivation); err != nil {
			return &InvalidSettingError{Name: "default_activation", Reason: err.Error()}
		}
	}
	if s.DefaultAggregation != "" {
		if _, err := lang.ParseAggregation(s.DefaultAggregation); err != nil {
			return &InvalidSettingError{Name: "default_aggregation", Reason: err.Error()}
		}
	}
	return nil
}

// YAML renders s in the form LoadSettings reads.
func (s Settings) YAML() (string, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "encoding settings")
	}
	return string(data), nil
}

func oneOf(value string, options []string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}
