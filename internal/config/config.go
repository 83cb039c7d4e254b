package config

import (
	"flag"
	"fmt"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
	"io/ioutil"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/pkg/errors"
	"os"
	"time"
)

// DBCredential struct
type DBCredential struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

// GetRedisAddress prints redis credential info.
func (c *DBCredential) GetRedisAddress() string {
	return fmt.Sprintf("%v:%v", c.Address, c.Port)
}

func (c *DBCredential) Configured() bool {
	return c.Address != ""
}

// Configuration struct
type Configuration struct {
	ProjectID     string `yaml:"project_id"`
	SecureSiteURL string `yaml:"secure_site_url"`
	// RPCURL overrides the blockchain api host picked from Timezone.
	RPCURL        string              `yaml:"rpc_url"`
	Timezone      string              `yaml:"timezone"`
	LogLevel      string              `yaml:"log_level"`
	SdkVersion    string              `yaml:"sdk_version"`
	Dapp          schema.DappMetadata `yaml:"dapp"`
	Theme         Theme               `yaml:"theme"`
	EmailCooldown time.Duration       `yaml:"email_cooldown"`
	// MaxInFlight bounds requests awaiting a frame reply, unbounded when zero.
	MaxInFlight int `yaml:"max_in_flight"`

	Storage          Storage      `yaml:"storage"`
	RedisCredential  DBCredential `yaml:"redis"`
	HTTP             HTTP         `yaml:"http"`
	Environment      string       `yaml:"environment"`
	SentryDSN        string       `yaml:"sentry_dsn"`
	LarkAlarmWebhook string       `yaml:"lark_alarm_webhook"`
	KafkaServer      string       `yaml:"kafka-server"`
	KafkaTopic       string       `yaml:"kafka-topic"`
	Surface          Surface      `yaml:"surface"`
}

type Theme struct {
	Mode      schema.ThemeMode       `yaml:"mode"`
	Variables map[string]interface{} `yaml:"variables"`
}

const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

type Storage struct {
	Backend string `yaml:"backend"`
	// Path is the json file of the file backend.
	Path string `yaml:"path"`
	// Namespace defaults to the project id.
	Namespace string `yaml:"namespace"`
}

type HTTP struct {
	Addr               string        `yaml:"addr"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
}

// Surface configures the simulated authentication surface.
type Surface struct {
	Enabled bool `yaml:"enabled"`
	// PrivateKey is the hex key of the simulated wallet, generated when empty.
	PrivateKey string `yaml:"private_key"`
	ChainID    int64  `yaml:"chain_id"`
	// Otp switches email login to one time codes. Empty means device approval.
	Otp string `yaml:"otp"`
}

const (
	DefaultSecureSite     = "https://secure.walletconnect.com/sdk"
	DefaultEmailCooldown  = 30 * time.Second
	DefaultHTTPAddr       = ":8080"
	DefaultRequestTimeout = 60 * time.Second
	DefaultStoragePath    = "frame-bridge-session.json"
	DefaultKafkaTopic     = "frame_events"
)

func (c *Configuration) applyDefaults() {
	if c.SecureSiteURL == "" {
		c.SecureSiteURL = DefaultSecureSite
	}
	if c.EmailCooldown <= 0 {
		c.EmailCooldown = DefaultEmailCooldown
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageFile
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = c.ProjectID
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = DefaultRequestTimeout
	}
	if c.KafkaTopic == "" {
		c.KafkaTopic = DefaultKafkaTopic
	}
	if c.Surface.ChainID == 0 {
		c.Surface.ChainID = 1
	}
}

func (c *Configuration) validate() error {
	if c.ProjectID == "" {
		return errors.New("project_id not present")
	}
	switch c.Storage.Backend {
	case StorageMemory, StorageFile:
	case StorageRedis:
		if !c.RedisCredential.Configured() {
			return errors.New("redis storage backend requires redis credential")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Theme.Mode {
	case "", schema.ThemeLight, schema.ThemeDark:
	default:
		return errors.Errorf("unknown theme mode %q", c.Theme.Mode)
	}
	return nil
}

// Parse decodes yaml configuration and applies defaults.
func Parse(data []byte) (*Configuration, error) {
	t := &Configuration{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, errors.Wrap(err, "decode configuration")
	}
	t.applyDefaults()
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Load reads the configuration file at path.
func Load(path string) (*Configuration, error) {
	dat, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("file %s does not exist", path)
		}
		return nil, errors.Wrapf(err, "read configuration %v", path)
	}
	return Parse(dat)
}

var Global *Configuration

// Read reads configuration information from yml.
func Read() {
	configFilePath := flag.String("config-path", "internal/config/config.yml", "The path to the configuration file")
	flag.Parse()
	logrus.Infof("Loading configuration file from %s", *configFilePath)
	globalConfig, err := Load(*configFilePath)
	if err != nil {
		logrus.Fatal(err)
	}
	Global = globalConfig
}
