package models

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	Realtime MRealtimeConfig `yaml:"realtime"`
	Auth     MAuthConfig     `yaml:"auth"`
	Network  MNetworkConfig  `yaml:"network"`
}

type MRealtimeConfig struct {
	ServerURL             string `yaml:"server_url"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	LiveTailPoints        int    `yaml:"live_tail_points"`
	DataRetentionDays     int    `yaml:"data_retention_days"`
	MainsMetric           string `yaml:"mains_metric"`
}

type MAuthConfig struct {
	TokenURL string `yaml:"token_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type MNetworkConfig struct {
	RequestTimeout int    `yaml:"timeout"`
	MaxRetries     int    `yaml:"retries"`
	UserAgent      string `yaml:"user_agent"`
}
