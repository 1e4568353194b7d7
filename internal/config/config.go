package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Env  string `mapstructure:"env" yaml:"env"`
}

// SerialConfig 控制盒串口配置
type SerialConfig struct {
	Device      string        `mapstructure:"device" yaml:"device"`
	BaudRate    int           `mapstructure:"baudRate" yaml:"baudRate"`
	DataBits    int           `mapstructure:"dataBits" yaml:"dataBits"`
	Parity      string        `mapstructure:"parity" yaml:"parity"` // none|odd|even
	StopBits    int           `mapstructure:"stopBits" yaml:"stopBits"`
	ReadTimeout time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
}

// DeskConfig 桌子控制参数
type DeskConfig struct {
	// Mock 为 true 时不打开串口，只记录日志
	Mock bool `mapstructure:"mock" yaml:"mock"`
	// SettleDelay 唤醒后到控制盒接受运动命令之间必须等待的时间
	SettleDelay       time.Duration `mapstructure:"settleDelay" yaml:"settleDelay"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeatInterval" yaml:"heartbeatInterval"`
	ReadBufferSize    int           `mapstructure:"readBufferSize" yaml:"readBufferSize"`
}

// MQTTConfig MQTT broker 连接配置
type MQTTConfig struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	ClientID       string        `mapstructure:"clientID" yaml:"clientID"`
	// UniqueClientID 在 ClientID 后追加主机名与随机后缀，多实例连接同一 broker 时使用
	UniqueClientID bool          `mapstructure:"uniqueClientID" yaml:"uniqueClientID"`
	Username       string        `mapstructure:"username" yaml:"username"`
	Password       string        `mapstructure:"password" yaml:"password"`
	KeepAlive      time.Duration `mapstructure:"keepAlive" yaml:"keepAlive"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout" yaml:"connectTimeout"`
	// TopicPrefix 追加在所有主题前，默认为空以兼容现有 HomeKit 配置
	TopicPrefix   string `mapstructure:"topicPrefix" yaml:"topicPrefix"`
	InboundBuffer int    `mapstructure:"inboundBuffer" yaml:"inboundBuffer"`
}

// BrokerURL 返回 paho 使用的 broker 地址
func (c MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Enable       bool          `mapstructure:"enable" yaml:"enable"`
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
}

// APIConfig REST 控制接口配置
type APIConfig struct {
	// RecallRate 每秒允许的运动请求数，RecallBurst 为突发容量
	RecallRate  float64 `mapstructure:"recallRate" yaml:"recallRate"`
	RecallBurst int     `mapstructure:"recallBurst" yaml:"recallBurst"`
	// Keys 非空时 /api 需要 X-API-Key 或 Bearer 认证
	Keys []string `mapstructure:"keys" yaml:"keys"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize" yaml:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge" yaml:"maxAge"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level" yaml:"level"`
	Format string           `mapstructure:"format" yaml:"format"`
	File   LumberjackConfig `mapstructure:"file" yaml:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable" yaml:"enable"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// RedisConfig 高度镜像（只写）
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	Password     string        `mapstructure:"password" yaml:"password"`
	DB           int           `mapstructure:"db" yaml:"db"`
	PoolSize     int           `mapstructure:"poolSize" yaml:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns" yaml:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout" yaml:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
	KeyPrefix    string        `mapstructure:"keyPrefix" yaml:"keyPrefix"`
	HeightTTL    time.Duration `mapstructure:"heightTTL" yaml:"heightTTL"`
}

// Config 顶层配置结构
type Config struct {
	App     AppConfig     `mapstructure:"app" yaml:"app"`
	Serial  SerialConfig  `mapstructure:"serial" yaml:"serial"`
	Desk    DeskConfig    `mapstructure:"desk" yaml:"desk"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// ErrInvalid 配置校验失败
var ErrInvalid = errors.New("invalid config")

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 DESK_CONFIG 读取；否则回退到 configs/example.yaml（可缺省）。
func Load(path string) (*Config, error) {
	v := viper.New()

	// 环境变量覆盖：前缀 DESK_，并将点号替换为下划线（DESK_MQTT_HOST）
	v.SetEnvPrefix("DESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate 启动前校验，失败即退出
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.MQTT.Host) == "" {
		errs = append(errs, errors.New("mqtt.host is required"))
	}
	if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
		errs = append(errs, fmt.Errorf("mqtt.port out of range: %d", c.MQTT.Port))
	}
	if c.MQTT.InboundBuffer <= 0 {
		errs = append(errs, fmt.Errorf("mqtt.inboundBuffer must be positive: %d", c.MQTT.InboundBuffer))
	}
	if !c.Desk.Mock {
		if c.Serial.Device == "" {
			errs = append(errs, errors.New("serial.device is required"))
		}
		if c.Serial.BaudRate <= 0 {
			errs = append(errs, fmt.Errorf("serial.baudRate must be positive: %d", c.Serial.BaudRate))
		}
		switch strings.ToLower(c.Serial.Parity) {
		case "none", "odd", "even":
		default:
			errs = append(errs, fmt.Errorf("serial.parity unknown: %q", c.Serial.Parity))
		}
		if c.Serial.StopBits != 1 && c.Serial.StopBits != 2 {
			errs = append(errs, fmt.Errorf("serial.stopBits must be 1 or 2: %d", c.Serial.StopBits))
		}
	}
	if c.Desk.ReadBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("desk.readBufferSize must be positive: %d", c.Desk.ReadBufferSize))
	}
	if c.Desk.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("desk.settleDelay must not be negative: %s", c.Desk.SettleDelay))
	}
	if c.Desk.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("desk.heartbeatInterval must be positive: %s", c.Desk.HeartbeatInterval))
	}
	if c.API.RecallRate <= 0 {
		errs = append(errs, fmt.Errorf("api.recallRate must be positive: %g", c.API.RecallRate))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "flexispot-bridge")
	v.SetDefault("app.env", "dev")

	// 控制盒固定 9600 8N1
	v.SetDefault("serial.device", "/dev/serial0")
	v.SetDefault("serial.baudRate", 9600)
	v.SetDefault("serial.dataBits", 8)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.stopBits", 1)
	v.SetDefault("serial.readTimeout", "1s")

	v.SetDefault("desk.mock", false)
	v.SetDefault("desk.settleDelay", "500ms")
	v.SetDefault("desk.heartbeatInterval", "1s")
	v.SetDefault("desk.readBufferSize", 512)

	v.SetDefault("mqtt.host", "")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.clientID", "flexispot-homekit")
	v.SetDefault("mqtt.uniqueClientID", false)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.keepAlive", "5s")
	v.SetDefault("mqtt.connectTimeout", "10s")
	v.SetDefault("mqtt.topicPrefix", "")
	v.SetDefault("mqtt.inboundBuffer", 10)

	v.SetDefault("http.enable", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")

	v.SetDefault("api.recallRate", 0.5)
	v.SetDefault("api.recallBurst", 2)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/flexispot-bridge.log")
	v.SetDefault("logging.file.maxSize", 20)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 4)
	v.SetDefault("redis.minIdleConns", 1)
	v.SetDefault("redis.dialTimeout", "3s")
	v.SetDefault("redis.readTimeout", "1s")
	v.SetDefault("redis.writeTimeout", "1s")
	v.SetDefault("redis.keyPrefix", "flexispot:")
	v.SetDefault("redis.heightTTL", "1m")
}
