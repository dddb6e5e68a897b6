package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig は設定値が不正な場合のエラー
var ErrInvalidConfig = errors.New("invalid config")

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// BLAST URL API 設定
	Blast BlastConfig

	// E-utilities 設定
	Entrez EntrezConfig

	// HTTPTimeout は NCBI へのリクエスト1件あたりのタイムアウト
	HTTPTimeout time.Duration

	// ジョブのポーリング設定
	Poll PollConfig

	// 参照レコード取得の再試行設定
	Fetch FetchConfig

	// ParseMaxRetries は結果ドキュメントの解析失敗による再投入回数の上限（0 は無制限）
	ParseMaxRetries int

	// QuarantineDir は解析できなかった結果ドキュメントの保存先
	QuarantineDir string

	// RankingConfigPath はランキング設定ファイルのパス
	RankingConfigPath string

	// Database設定（postgres 出力用）
	Database DatabaseConfig

	// ログ設定
	Log LogConfig
}

// BlastConfig は BLAST URL API の設定
type BlastConfig struct {
	URL       string
	Program   string
	Megablast bool
}

// EntrezConfig は E-utilities の設定
type EntrezConfig struct {
	URL      string
	Database string
	APIKey   string
	Tool     string
	Email    string
}

// PollConfig はジョブのポーリング設定
type PollConfig struct {
	Interval         time.Duration
	MaxAttempts      int
	MaxResubmissions int
	FailedIsTerminal bool
}

// FetchConfig は参照レコード取得の再試行設定
type FetchConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Blast: BlastConfig{
			URL:       getEnv("BLAST_URL", "https://blast.ncbi.nlm.nih.gov/blast/Blast.cgi"),
			Program:   getEnv("BLAST_PROGRAM", "blastn"),
			Megablast: getEnvAsBool("BLAST_MEGABLAST", true),
		},
		Entrez: EntrezConfig{
			URL:      getEnv("EUTILS_URL", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"),
			Database: getEnv("ENTREZ_DB", "nuccore"),
			APIKey:   getEnv("NCBI_API_KEY", ""),
			Tool:     getEnv("NCBI_TOOL", "seqsearch"),
			Email:    getEnv("NCBI_EMAIL", ""),
		},
		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 60*time.Second),
		Poll: PollConfig{
			Interval:         getEnvAsDuration("POLL_INTERVAL", 5*time.Second),
			MaxAttempts:      getEnvAsInt("POLL_MAX_ATTEMPTS", 40),
			MaxResubmissions: getEnvAsInt("POLL_MAX_RESUBMISSIONS", 10),
			FailedIsTerminal: getEnvAsBool("POLL_FAILED_IS_TERMINAL", false),
		},
		Fetch: FetchConfig{
			MaxAttempts:    getEnvAsInt("FETCH_MAX_ATTEMPTS", 20),
			InitialBackoff: getEnvAsDuration("FETCH_INITIAL_BACKOFF", 500*time.Millisecond),
			MaxBackoff:     getEnvAsDuration("FETCH_MAX_BACKOFF", 30*time.Second),
		},
		ParseMaxRetries:   getEnvAsInt("PARSE_MAX_RETRIES", 3),
		QuarantineDir:     getEnv("QUARANTINE_DIR", "quarantine"),
		RankingConfigPath: getEnv("RANKING_CONFIG", "ranking.yaml"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "seqsearch"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "seqsearch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は設定値の範囲を検証します
func (c *Config) Validate() error {
	var problems []string

	if c.Blast.URL == "" {
		problems = append(problems, "BLAST_URL is empty")
	}
	if c.Entrez.URL == "" {
		problems = append(problems, "EUTILS_URL is empty")
	}
	if c.HTTPTimeout <= 0 {
		problems = append(problems, "HTTP_TIMEOUT must be positive")
	}
	if c.Poll.Interval <= 0 {
		problems = append(problems, "POLL_INTERVAL must be positive")
	}
	if c.Poll.MaxAttempts <= 0 {
		problems = append(problems, "POLL_MAX_ATTEMPTS must be positive")
	}
	if c.Poll.MaxResubmissions < 0 {
		problems = append(problems, "POLL_MAX_RESUBMISSIONS must not be negative")
	}
	if c.Fetch.MaxAttempts < 0 {
		problems = append(problems, "FETCH_MAX_ATTEMPTS must not be negative")
	}
	if c.Fetch.InitialBackoff <= 0 || c.Fetch.MaxBackoff < c.Fetch.InitialBackoff {
		problems = append(problems, "FETCH_INITIAL_BACKOFF must be positive and not exceed FETCH_MAX_BACKOFF")
	}
	if c.ParseMaxRetries < 0 {
		problems = append(problems, "PARSE_MAX_RETRIES must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します（"5s" や "500ms" 形式）
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
