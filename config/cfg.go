package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	// PageConfig describes page geometry in abstract layout units. Values here
	// feed the built-in metrics oracle, a reader stylesheet (if provided)
	// takes precedence.
	PageConfig struct {
		Width               float64 `yaml:"width" validate:"gt=0"`
		Height              float64 `yaml:"height" validate:"gt=0"`
		LineHeight          float64 `yaml:"line_height" validate:"gt=0"`
		CharWidth           float64 `yaml:"char_width" validate:"gt=0"`
		HeadingReserve      float64 `yaml:"heading_reserve" validate:"gte=0"`
		ChapterStartReserve float64 `yaml:"chapter_start_reserve" validate:"gte=0"`
	}

	// ThresholdsConfig exposes pagination tuning knobs. Their exact values are
	// a product tuning concern, not a correctness one.
	ThresholdsConfig struct {
		SmallRemainingSpace float64 `yaml:"small_remaining_space" validate:"gte=0"`
		SkipSplitSlack      float64 `yaml:"skip_split_slack" validate:"gte=0"`
		OverflowTolerance   float64 `yaml:"overflow_tolerance" validate:"gte=0"`
		LongBlockLength     int     `yaml:"long_block_length" validate:"min=0"`
		MinSplitWords       int     `yaml:"min_split_words" validate:"min=1"`
		MinKaraokeChunk     int     `yaml:"min_karaoke_chunk" validate:"min=1"`
	}

	LayoutConfig struct {
		Page           PageConfig       `yaml:"page"`
		Thresholds     ThresholdsConfig `yaml:"thresholds"`
		StylesheetPath string           `yaml:"stylesheet_path" sanitize:"assure_file_access"`
	}

	FootnotesConfig struct {
		BodyNames     []string `yaml:"bodies" validate:"dive,required"`
		DividerHeight float64  `yaml:"divider_height" validate:"gte=0"`
		EntrySpacing  float64  `yaml:"entry_spacing" validate:"gte=0"`
	}

	PlaybackConfig struct {
		TickIntervalMS int `yaml:"tick_interval_ms" validate:"min=1"`
	}

	DocumentConfig struct {
		OutputNameTemplate    string          `yaml:"output_name_template"`
		FileNameTransliterate bool            `yaml:"file_name_transliterate"`
		Footnotes             FootnotesConfig `yaml:"footnotes"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Layout    LayoutConfig   `yaml:"layout"`
		Playback  PlaybackConfig `yaml:"playback"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
