package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/apis/gemini"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/publish"
)

const (
	// defaults
	DataDirDefault                  = "data"
	LogLevelDefault                 = "info"
	ChunkDurationSecDefault         = 480
	ChunkOverlapSecDefault          = 30
	MergeToleranceSecDefault        = 2
	CompletenessToleranceSecDefault = 30
	CoverageFractionDefault         = 0.7
	MinContentCharsDefault          = 100
	MaxAttemptsDefault              = 3
	RetryBaseDelayDefault           = time.Second
	MaxConcurrentDefault            = 3
	ExtractConcurrencyDefault       = 1
	RoleALabelDefault               = "Interviewer"
	RoleBLabelDefault               = "Interviewee"
	EnvFileDefault                  = ".env"

	redacted = "***"
)

type TranscriberConfig struct {
	// input config
	InputPath   string
	DataDir     string
	LogLevel    string
	FFmpegPath  string
	FFprobePath string

	// chunking config
	ChunkDurationSec int
	ChunkOverlapSec  int

	// transcription config
	RoleALabel        string
	RoleBLabel        string
	MinContentChars   int
	CoverageFraction  float64
	MaxAttempts       int
	RetryBaseDelay    time.Duration
	MaxConcurrent     int
	RequestsPerMinute int
	Gemini            gemini.Config

	// merge config
	MergeToleranceSec        int
	CompletenessToleranceSec int

	// output config
	ExtractConcurrency int
	KeepChunks         bool
	CopyToClipboard    bool
	OutputOptions      publish.OutputOptions
	Mattermost         publish.MattermostConfig
}

func (cfg TranscriberConfig) IsValid() error {
	if cfg == (TranscriberConfig{}) {
		return fmt.Errorf("config cannot be empty")
	}

	if cfg.DataDir == "" {
		return fmt.Errorf("DataDir cannot be empty")
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LogLevel value is not valid")
	}

	if cfg.ChunkDurationSec <= 0 {
		return fmt.Errorf("ChunkDurationSec should be a positive number")
	}
	if cfg.ChunkOverlapSec < 0 || cfg.ChunkOverlapSec >= cfg.ChunkDurationSec {
		return fmt.Errorf("ChunkOverlapSec should be in the range [0, %d)", cfg.ChunkDurationSec)
	}

	if cfg.RoleALabel == "" || cfg.RoleBLabel == "" {
		return fmt.Errorf("role labels cannot be empty")
	}
	if cfg.RoleALabel == cfg.RoleBLabel {
		return fmt.Errorf("role labels should be different")
	}
	if cfg.MinContentChars < 0 {
		return fmt.Errorf("MinContentChars should not be negative")
	}
	if cfg.CoverageFraction <= 0 || cfg.CoverageFraction > 1 {
		return fmt.Errorf("CoverageFraction should be in the range (0, 1]")
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("MaxAttempts should be at least 1")
	}
	if cfg.RetryBaseDelay < 0 {
		return fmt.Errorf("RetryBaseDelay should not be negative")
	}
	if cfg.MaxConcurrent < 1 {
		return fmt.Errorf("MaxConcurrent should be at least 1")
	}
	if cfg.ExtractConcurrency < 1 {
		return fmt.Errorf("ExtractConcurrency should be at least 1")
	}
	if cfg.RequestsPerMinute < 0 {
		return fmt.Errorf("RequestsPerMinute should not be negative")
	}

	if cfg.MergeToleranceSec < 0 {
		return fmt.Errorf("MergeToleranceSec should not be negative")
	}
	if cfg.CompletenessToleranceSec < 0 {
		return fmt.Errorf("CompletenessToleranceSec should not be negative")
	}

	if err := cfg.Gemini.IsValid(); err != nil {
		return fmt.Errorf("Gemini config is not valid: %w", err)
	}

	if !cfg.Mattermost.IsEmpty() {
		if err := cfg.Mattermost.IsValid(); err != nil {
			return fmt.Errorf("Mattermost config is not valid: %w", err)
		}
	}

	if err := cfg.OutputOptions.Text.IsValid(); err != nil {
		return err
	}

	return cfg.OutputOptions.WebVTT.IsValid()
}

func (cfg *TranscriberConfig) SetDefaults() {
	if cfg.DataDir == "" {
		cfg.DataDir = DataDirDefault
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogLevelDefault
	}
	if cfg.ChunkDurationSec == 0 {
		cfg.ChunkDurationSec = ChunkDurationSecDefault
	}
	if cfg.ChunkOverlapSec == 0 {
		cfg.ChunkOverlapSec = ChunkOverlapSecDefault
	}
	if cfg.RoleALabel == "" {
		cfg.RoleALabel = RoleALabelDefault
	}
	if cfg.RoleBLabel == "" {
		cfg.RoleBLabel = RoleBLabelDefault
	}
	if cfg.MinContentChars == 0 {
		cfg.MinContentChars = MinContentCharsDefault
	}
	if cfg.CoverageFraction == 0 {
		cfg.CoverageFraction = CoverageFractionDefault
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = MaxAttemptsDefault
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = RetryBaseDelayDefault
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = MaxConcurrentDefault
	}
	if cfg.ExtractConcurrency == 0 {
		cfg.ExtractConcurrency = ExtractConcurrencyDefault
	}
	if cfg.MergeToleranceSec == 0 {
		cfg.MergeToleranceSec = MergeToleranceSecDefault
	}
	if cfg.CompletenessToleranceSec == 0 {
		cfg.CompletenessToleranceSec = CompletenessToleranceSecDefault
	}

	cfg.Gemini.SetDefaults()

	if cfg.OutputOptions.WebVTT.IsEmpty() {
		cfg.OutputOptions.WebVTT.SetDefaults()
	}

	if cfg.OutputOptions.Text.IsEmpty() {
		cfg.OutputOptions.Text.SetDefaults()
	}
}

// Redacted returns a copy of the config with secrets masked, suitable for
// logging.
func (cfg TranscriberConfig) Redacted() TranscriberConfig {
	if cfg.Gemini.APIKey != "" {
		cfg.Gemini.APIKey = redacted
	}
	if cfg.Mattermost.AuthToken != "" {
		cfg.Mattermost.AuthToken = redacted
	}
	return cfg
}

func (cfg TranscriberConfig) ToEnv() []string {
	if cfg == (TranscriberConfig{}) {
		return nil
	}

	vars := []string{
		fmt.Sprintf("INPUT_PATH=%s", cfg.InputPath),
		fmt.Sprintf("DATA_DIR=%s", cfg.DataDir),
		fmt.Sprintf("LOG_LEVEL=%s", cfg.LogLevel),
		fmt.Sprintf("FFMPEG_PATH=%s", cfg.FFmpegPath),
		fmt.Sprintf("FFPROBE_PATH=%s", cfg.FFprobePath),
		fmt.Sprintf("CHUNK_DURATION_SEC=%d", cfg.ChunkDurationSec),
		fmt.Sprintf("CHUNK_OVERLAP_SEC=%d", cfg.ChunkOverlapSec),
		fmt.Sprintf("ROLE_A_LABEL=%s", cfg.RoleALabel),
		fmt.Sprintf("ROLE_B_LABEL=%s", cfg.RoleBLabel),
		fmt.Sprintf("MIN_CONTENT_CHARS=%d", cfg.MinContentChars),
		fmt.Sprintf("COVERAGE_FRACTION=%s", strconv.FormatFloat(cfg.CoverageFraction, 'f', -1, 64)),
		fmt.Sprintf("MAX_ATTEMPTS=%d", cfg.MaxAttempts),
		fmt.Sprintf("RETRY_BASE_DELAY=%s", cfg.RetryBaseDelay),
		fmt.Sprintf("MAX_CONCURRENT=%d", cfg.MaxConcurrent),
		fmt.Sprintf("REQUESTS_PER_MINUTE=%d", cfg.RequestsPerMinute),
		fmt.Sprintf("MERGE_TOLERANCE_SEC=%d", cfg.MergeToleranceSec),
		fmt.Sprintf("COMPLETENESS_TOLERANCE_SEC=%d", cfg.CompletenessToleranceSec),
		fmt.Sprintf("EXTRACT_CONCURRENCY=%d", cfg.ExtractConcurrency),
		fmt.Sprintf("KEEP_CHUNKS=%t", cfg.KeepChunks),
		fmt.Sprintf("COPY_TO_CLIPBOARD=%t", cfg.CopyToClipboard),
	}

	vars = append(vars, cfg.Gemini.ToEnv()...)
	vars = append(vars, cfg.Mattermost.ToEnv()...)
	vars = append(vars, cfg.OutputOptions.WebVTT.ToEnv()...)
	vars = append(vars, cfg.OutputOptions.Text.ToEnv()...)

	return vars
}

func (cfg TranscriberConfig) ToMap() map[string]any {
	if cfg == (TranscriberConfig{}) {
		return nil
	}

	m := map[string]any{
		"input_path":                 cfg.InputPath,
		"data_dir":                   cfg.DataDir,
		"log_level":                  cfg.LogLevel,
		"ffmpeg_path":                cfg.FFmpegPath,
		"ffprobe_path":               cfg.FFprobePath,
		"chunk_duration_sec":         cfg.ChunkDurationSec,
		"chunk_overlap_sec":          cfg.ChunkOverlapSec,
		"role_a_label":               cfg.RoleALabel,
		"role_b_label":               cfg.RoleBLabel,
		"min_content_chars":          cfg.MinContentChars,
		"coverage_fraction":          cfg.CoverageFraction,
		"max_attempts":               cfg.MaxAttempts,
		"retry_base_delay":           cfg.RetryBaseDelay.String(),
		"max_concurrent":             cfg.MaxConcurrent,
		"requests_per_minute":        cfg.RequestsPerMinute,
		"merge_tolerance_sec":        cfg.MergeToleranceSec,
		"completeness_tolerance_sec": cfg.CompletenessToleranceSec,
		"extract_concurrency":        cfg.ExtractConcurrency,
		"keep_chunks":                cfg.KeepChunks,
		"copy_to_clipboard":          cfg.CopyToClipboard,
	}

	for _, sub := range []map[string]any{
		cfg.Gemini.ToMap(),
		cfg.Mattermost.ToMap(),
		cfg.OutputOptions.WebVTT.ToMap(),
		cfg.OutputOptions.Text.ToMap(),
	} {
		for k, v := range sub {
			m[k] = v
		}
	}

	return m
}

// LoadEnvFile loads variables from a dotenv file without overriding the ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = EnvFileDefault
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func FromEnv() (TranscriberConfig, error) {
	var cfg TranscriberConfig
	cfg.InputPath = os.Getenv("INPUT_PATH")
	cfg.DataDir = os.Getenv("DATA_DIR")
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	cfg.FFmpegPath = os.Getenv("FFMPEG_PATH")
	cfg.FFprobePath = os.Getenv("FFPROBE_PATH")
	cfg.ChunkDurationSec, _ = strconv.Atoi(os.Getenv("CHUNK_DURATION_SEC"))
	cfg.ChunkOverlapSec, _ = strconv.Atoi(os.Getenv("CHUNK_OVERLAP_SEC"))
	cfg.RoleALabel = os.Getenv("ROLE_A_LABEL")
	cfg.RoleBLabel = os.Getenv("ROLE_B_LABEL")
	cfg.MinContentChars, _ = strconv.Atoi(os.Getenv("MIN_CONTENT_CHARS"))
	cfg.CoverageFraction, _ = strconv.ParseFloat(os.Getenv("COVERAGE_FRACTION"), 64)
	cfg.MaxAttempts, _ = strconv.Atoi(os.Getenv("MAX_ATTEMPTS"))
	cfg.RetryBaseDelay, _ = time.ParseDuration(os.Getenv("RETRY_BASE_DELAY"))
	cfg.MaxConcurrent, _ = strconv.Atoi(os.Getenv("MAX_CONCURRENT"))
	cfg.RequestsPerMinute, _ = strconv.Atoi(os.Getenv("REQUESTS_PER_MINUTE"))
	cfg.MergeToleranceSec, _ = strconv.Atoi(os.Getenv("MERGE_TOLERANCE_SEC"))
	cfg.CompletenessToleranceSec, _ = strconv.Atoi(os.Getenv("COMPLETENESS_TOLERANCE_SEC"))
	cfg.ExtractConcurrency, _ = strconv.Atoi(os.Getenv("EXTRACT_CONCURRENCY"))
	cfg.KeepChunks, _ = strconv.ParseBool(os.Getenv("KEEP_CHUNKS"))
	cfg.CopyToClipboard, _ = strconv.ParseBool(os.Getenv("COPY_TO_CLIPBOARD"))

	cfg.Gemini.FromEnv()
	cfg.Gemini.BaseURL = strings.TrimSuffix(cfg.Gemini.BaseURL, "/")
	cfg.Mattermost.FromEnv()
	cfg.Mattermost.SiteURL = strings.TrimSuffix(cfg.Mattermost.SiteURL, "/")
	cfg.OutputOptions.WebVTT.FromEnv()
	cfg.OutputOptions.Text.FromEnv()

	return cfg, nil
}
