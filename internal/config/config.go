package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	FileStore   FileStoreConfig  `json:"file_store"`
	AI          AIConfig         `json:"ai"`
	Ingest      IngestConfig     `json:"ingest"`
	Search      SearchConfig     `json:"search"`
	CORSOrigins []string         `json:"cors_origins"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider         string      `json:"provider"`
	Model            string      `json:"model"`
	Data             interface{} `json:"data"`
	TimeoutSeconds   int         `json:"timeout_seconds"`
	MaxAttempts      int         `json:"max_attempts"`
	RetryBaseDelayMS int         `json:"retry_base_delay_ms"`
}

// IngestConfig carries the pipeline policy knobs. The defaults below were
// tuned against real uploads; none of them is load-bearing architecture.
type IngestConfig struct {
	MaxUploadBytes      int64  `json:"max_upload_bytes"`
	MaxServerPDFBytes   int64  `json:"max_server_pdf_bytes"`
	BytesPerPage        int64  `json:"bytes_per_page"`
	PageSizeChars       int    `json:"page_size_chars"`
	SinglePassPageLimit int    `json:"single_pass_page_limit"`
	BatchPages          int    `json:"batch_pages"`
	BatchDelayMS        int    `json:"batch_delay_ms"`
	ChunkTokens         int    `json:"chunk_tokens"`
	OverlapTokens       int    `json:"overlap_tokens"`
	MinChunkChars       int    `json:"min_chunk_chars"`
	StuckAfterMinutes   int    `json:"stuck_after_minutes"`
	SweepSpec           string `json:"sweep_spec"`
}

type SearchConfig struct {
	MaxChunks        int `json:"max_chunks"`
	MaxContextChars  int `json:"max_context_chars"`
	MaxChunksPerDoc  int `json:"max_chunks_per_doc"`
	RecentDocLimit   int `json:"recent_doc_limit"`
	CacheSize        int `json:"cache_size"`
	CacheTTLMinutes  int `json:"cache_ttl_minutes"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-2.0-flash"
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 120
	}
	if cfg.AI.MaxAttempts <= 0 {
		cfg.AI.MaxAttempts = 3
	}
	if cfg.AI.RetryBaseDelayMS <= 0 {
		cfg.AI.RetryBaseDelayMS = 2000
	}
	applyIngestDefaults(&cfg.Ingest)
	applySearchDefaults(&cfg.Search)
	return &cfg, nil
}

func applyIngestDefaults(c *IngestConfig) {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 50 << 20
	}
	if c.MaxServerPDFBytes <= 0 {
		c.MaxServerPDFBytes = 2 << 20
	}
	if c.BytesPerPage <= 0 {
		c.BytesPerPage = 80 << 10
	}
	if c.PageSizeChars <= 0 {
		c.PageSizeChars = 2000
	}
	if c.SinglePassPageLimit <= 0 {
		c.SinglePassPageLimit = 15
	}
	if c.BatchPages <= 0 {
		c.BatchPages = 10
	}
	if c.BatchDelayMS <= 0 {
		c.BatchDelayMS = 1000
	}
	if c.ChunkTokens <= 0 {
		c.ChunkTokens = 400
	}
	if c.OverlapTokens <= 0 {
		c.OverlapTokens = 80
	}
	if c.MinChunkChars <= 0 {
		c.MinChunkChars = 50
	}
	if c.StuckAfterMinutes <= 0 {
		c.StuckAfterMinutes = 10
	}
	if c.SweepSpec == "" {
		c.SweepSpec = "*/5 * * * *"
	}
}

func applySearchDefaults(c *SearchConfig) {
	if c.MaxChunks <= 0 {
		c.MaxChunks = 12
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = 8000
	}
	if c.MaxChunksPerDoc <= 0 {
		c.MaxChunksPerDoc = 50
	}
	if c.RecentDocLimit <= 0 {
		c.RecentDocLimit = 5
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
	if c.CacheTTLMinutes <= 0 {
		c.CacheTTLMinutes = 10
	}
}
