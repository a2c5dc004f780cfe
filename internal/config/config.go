package config

import (
	"time"

	"github.com/spf13/viper"
	"github.com/techgangboss/agentstore-sub000/internal/logger"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Chain       ChainConfig       `mapstructure:"chain"`
	Facilitator FacilitatorConfig `mapstructure:"facilitator"`
	Payment     PaymentConfig     `mapstructure:"payment"`
	Task        TaskConfig        `mapstructure:"task"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChainConfig 链上状态读取配置
type ChainConfig struct {
	RpcUrl           string `mapstructure:"rpc_url"`            // RPC节点URL
	Network          string `mapstructure:"network"`            // 网络标识 (base, base-sepolia, etc.)
	AssetAddress     string `mapstructure:"asset_address"`      // 结算代币合约地址（USDC）
	PlatformAddress  string `mapstructure:"platform_address"`   // 平台收款/打款地址
	Confirmations    int    `mapstructure:"confirmations"`      // 确认所需区块深度
	BlockTimeSeconds int    `mapstructure:"block_time_seconds"` // 平均出块时间，用于时间到区块号的估算
}

// FacilitatorConfig 结算中继配置
type FacilitatorConfig struct {
	URL            string `mapstructure:"url"`             // 中继服务地址
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // 单次请求超时
}

// PaymentConfig 支付与分润配置
type PaymentConfig struct {
	PlatformFeePct       float64 `mapstructure:"platform_fee_pct"`       // 平台手续费百分比
	EarnPoolPct          float64 `mapstructure:"earn_pool_pct"`          // 回馈资金池占手续费的百分比
	QuoteTTLSeconds      int     `mapstructure:"quote_ttl_seconds"`      // 报价有效期
	VerifyWindowSeconds  int     `mapstructure:"verify_window_seconds"`  // 预确认的复核窗口
	PayoutToleranceMicro int64   `mapstructure:"payout_tolerance_micro"` // 打款对账的金额容差
	PayoutScanBuffer     int     `mapstructure:"payout_scan_buffer"`     // 打款扫描的区块安全余量
}

type TaskConfig struct {
	ReconcileInterval int `mapstructure:"reconcile_interval"` // 对账任务间隔（秒）
	WorkerPoolSize    int `mapstructure:"worker_pool_size"`   // 对账并发协程数
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// QuoteTTL 报价有效期
func (p PaymentConfig) QuoteTTL() time.Duration {
	return time.Duration(p.QuoteTTLSeconds) * time.Second
}

// VerifyWindow 预确认复核窗口
func (p PaymentConfig) VerifyWindow() time.Duration {
	return time.Duration(p.VerifyWindowSeconds) * time.Second
}

// Timeout 中继请求超时
func (f FacilitatorConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/agentstore")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "agentstore")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("chain.network", "base-sepolia")
	viper.SetDefault("chain.confirmations", 1)
	viper.SetDefault("chain.block_time_seconds", 2)
	viper.SetDefault("facilitator.url", "https://x402.org/facilitator")
	viper.SetDefault("facilitator.timeout_seconds", 30)
	viper.SetDefault("payment.platform_fee_pct", 20)
	viper.SetDefault("payment.earn_pool_pct", 10)
	viper.SetDefault("payment.quote_ttl_seconds", 300)
	viper.SetDefault("payment.verify_window_seconds", 60)
	viper.SetDefault("payment.payout_tolerance_micro", 100)
	viper.SetDefault("payment.payout_scan_buffer", 1000)
	viper.SetDefault("task.reconcile_interval", 30)
	viper.SetDefault("task.worker_pool_size", 8)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
