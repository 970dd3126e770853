// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是服务的全部配置，来自 YAML 文件并允许环境变量覆盖基础设施地址。
type Config struct {
	App      AppConfig      `yaml:"app"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Order    OrderConfig    `yaml:"order"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Infra    InfraConfig    `yaml:"infra"`
}

type AppConfig struct {
	Name            string        `yaml:"name"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig 中 Driver 取值 mysql 或 memory
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

type OrderConfig struct {
	ProcessingTimeout    time.Duration `yaml:"processing_timeout"`
	MaxAttempts          int           `yaml:"max_attempts"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval"`
	IdempotencyTTL       time.Duration `yaml:"idempotency_ttl"`
}

// pendingClaimMargin 让处理中的幂等键比请求截止时间多存活一段
const pendingClaimMargin = 30 * time.Second

// PendingClaimTTL 是幂等键处于处理中状态的过期时间
func (c OrderConfig) PendingClaimTTL() time.Duration {
	return c.ProcessingTimeout + pendingClaimMargin
}

// PricingConfig 为空表达式时不启用服务端税费/折扣规则
type PricingConfig struct {
	TaxExpr      string `yaml:"tax_expr"`
	DiscountExpr string `yaml:"discount_expr"`
}

type InfraConfig struct {
	Jaeger JaegerConfig `yaml:"jaeger"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Redis  RedisConfig  `yaml:"redis"`
	Nacos  NacosConfig  `yaml:"nacos"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type KafkaConfig struct {
	Brokers          []string `yaml:"brokers"`
	OrderEventsTopic string   `yaml:"order_events_topic"`
	FeedGroupID      string   `yaml:"feed_group_id"`
}

type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

var current atomic.Pointer[Config]

// Init 读取配置文件（CONFIG_PATH 指定，默认 configs/config.yaml）并设为当前配置。
func Init() (*Config, error) {
	return Load(getEnv("CONFIG_PATH", "configs/config.yaml"))
}

// Load 读取指定路径的配置文件，文件不存在时使用默认值。
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// 没有配置文件时只依赖默认值与环境变量
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if cfg.App.ShutdownTimeout <= 0 {
		cfg.App.ShutdownTimeout = 10 * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	current.Store(cfg)
	return cfg, nil
}

// GetCurrentConfig 返回最近一次加载的配置，未加载时返回默认配置。
func GetCurrentConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	return Default()
}

func Default() *Config {
	return &Config{
		App: AppConfig{Name: "backoffice-service", Port: 8080, ShutdownTimeout: 10 * time.Second},
		Log: LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    20,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			AutoMigrate:     true,
		},
		Order: OrderConfig{
			ProcessingTimeout:    30 * time.Second,
			MaxAttempts:          5,
			RetryInitialInterval: 10 * time.Millisecond,
			RetryMaxInterval:     200 * time.Millisecond,
			IdempotencyTTL:       24 * time.Hour,
		},
		Infra: InfraConfig{
			Kafka: KafkaConfig{OrderEventsTopic: "order-events", FeedGroupID: "backoffice-order-feed"},
			Nacos: NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
	}
}

// applyEnv 让部署环境覆盖文件中的基础设施地址
func (c *Config) applyEnv() {
	if v := getEnv("DATABASE_DSN", ""); v != "" {
		c.Database.DSN = v
		c.Database.Driver = "mysql"
	}
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		c.Infra.Kafka.Brokers = splitList(v)
	}
	if v := getEnv("REDIS_ADDRS", ""); v != "" {
		c.Infra.Redis.Addrs = splitList(v)
	}
	c.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", c.Infra.Jaeger.Endpoint)
	c.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", c.Infra.Nacos.ServerAddrs)
	c.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", c.Infra.Nacos.Namespace)
	c.Infra.Nacos.Group = getEnv("NACOS_GROUP", c.Infra.Nacos.Group)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	if v := getEnv("PORT", ""); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.App.Port = port
		}
	}
}

// Validate 检查配置中互相依赖的字段
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the mysql driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.App.Port <= 0 {
		return fmt.Errorf("app.port must be positive")
	}
	if c.Order.MaxAttempts <= 0 {
		return fmt.Errorf("order.max_attempts must be positive")
	}
	if c.Order.ProcessingTimeout <= 0 {
		return fmt.Errorf("order.processing_timeout must be positive")
	}
	if c.Order.IdempotencyTTL < time.Millisecond {
		return fmt.Errorf("order.idempotency_ttl must be at least 1ms")
	}
	if len(c.Infra.Kafka.Brokers) > 0 && c.Infra.Kafka.OrderEventsTopic == "" {
		return fmt.Errorf("infra.kafka.order_events_topic is required when brokers are set")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
