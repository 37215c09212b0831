package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"parking-anpr/internal/fare"
	"parking-anpr/internal/recognition"
)

const envPrefix = "PARKING"

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Fare        FareConfig        `mapstructure:"fare"`
	Auth        AuthConfig        `mapstructure:"auth"`
	AWS         AWSConfig         `mapstructure:"aws"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	RetryOnce       bool          `mapstructure:"retry_once"`
}

type RecognitionConfig struct {
	Detector       string        `mapstructure:"detector"`
	ModelPath      string        `mapstructure:"model_path"`
	InputSize      int           `mapstructure:"input_size"`
	NMSThreshold   float64       `mapstructure:"nms_threshold"`
	ClassNames     []string      `mapstructure:"class_names"`
	OCR            string        `mapstructure:"ocr"`
	OCRLanguage    string        `mapstructure:"ocr_language"`
	MinConfidence  float64       `mapstructure:"min_confidence"`
	CropInset      int           `mapstructure:"crop_inset"`
	Samples        int           `mapstructure:"samples"`
	Timeout        time.Duration `mapstructure:"timeout"`
	PlateLength    int           `mapstructure:"plate_length"`
	MinPlateLength int           `mapstructure:"min_plate_length"`
	Seed           uint64        `mapstructure:"seed"`
}

type FareConfig struct {
	Policy        string  `mapstructure:"policy"`
	Base          float64 `mapstructure:"base"`
	RatePerMinute float64 `mapstructure:"rate_per_minute"`
	FreeMinutes   int64   `mapstructure:"free_minutes"`
	FlatFee       float64 `mapstructure:"flat_fee"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type AWSConfig struct {
	Region         string `mapstructure:"region"`
	SnapshotBucket string `mapstructure:"snapshot_bucket"`
	EventQueueURL  string `mapstructure:"event_queue_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.retry_once", true)

	v.SetDefault("recognition.detector", "yolo")
	v.SetDefault("recognition.model_path", "models/plate_detection.onnx")
	v.SetDefault("recognition.input_size", 640)
	v.SetDefault("recognition.nms_threshold", 0.45)
	v.SetDefault("recognition.class_names", []string{"plate"})
	v.SetDefault("recognition.ocr", "tesseract")
	v.SetDefault("recognition.ocr_language", "eng")
	v.SetDefault("recognition.min_confidence", 0.8)
	v.SetDefault("recognition.crop_inset", recognition.DefaultCropInset)
	v.SetDefault("recognition.samples", 5)
	v.SetDefault("recognition.timeout", 20*time.Second)
	v.SetDefault("recognition.plate_length", 6)
	v.SetDefault("recognition.min_plate_length", 6)
	v.SetDefault("recognition.seed", 0)

	v.SetDefault("fare.policy", "linear")
	v.SetDefault("fare.base", 20)
	v.SetDefault("fare.rate_per_minute", 1)
	v.SetDefault("fare.free_minutes", 30)
	v.SetDefault("fare.flat_fee", 1000)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("aws.region", "")
	v.SetDefault("aws.snapshot_bucket", "")
	v.SetDefault("aws.event_queue_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads .env, then an optional config file, then PARKING_* environment
// variables, each overriding the previous one.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	flags := pflag.NewFlagSet("parking-anpr", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a config file (yaml, json or toml)")
	flags.String("port", "", "HTTP listen port")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *configPath != "" {
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", *configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	if err := v.BindPFlag("server.port", flags.Lookup("port")); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "mysql":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres, mysql or memory, got %q", c.Database.Driver))
	}

	switch c.Recognition.Detector {
	case "yolo", "none":
	default:
		errs = append(errs, fmt.Errorf("recognition.detector must be yolo or none, got %q", c.Recognition.Detector))
	}
	switch c.Recognition.OCR {
	case "tesseract", "rekognition":
	default:
		errs = append(errs, fmt.Errorf("recognition.ocr must be tesseract or rekognition, got %q", c.Recognition.OCR))
	}
	if c.Recognition.MinConfidence < 0 || c.Recognition.MinConfidence > 1 {
		errs = append(errs, errors.New("recognition.min_confidence must be within [0,1]"))
	}
	if c.Recognition.Samples < 1 {
		errs = append(errs, errors.New("recognition.samples must be at least 1"))
	}
	if c.Recognition.PlateLength < 1 {
		errs = append(errs, errors.New("recognition.plate_length must be at least 1"))
	}
	if c.Recognition.MinPlateLength > c.Recognition.PlateLength {
		errs = append(errs, errors.New("recognition.min_plate_length exceeds plate_length"))
	}

	switch c.Fare.Policy {
	case "linear", "tiered":
	default:
		errs = append(errs, fmt.Errorf("fare.policy must be linear or tiered, got %q", c.Fare.Policy))
	}

	if c.Recognition.OCR == "rekognition" || c.AWS.SnapshotBucket != "" || c.AWS.EventQueueURL != "" {
		if c.AWS.Region == "" {
			errs = append(errs, errors.New("aws.region is required when AWS services are enabled"))
		}
	}
	return errors.Join(errs...)
}

func (f FareConfig) FareConfig() fare.Config {
	return fare.Config{
		Policy:        f.Policy,
		Base:          f.Base,
		RatePerMinute: f.RatePerMinute,
		FreeMinutes:   f.FreeMinutes,
		FlatFee:       f.FlatFee,
	}
}

func (r RecognitionConfig) Options() recognition.Options {
	return recognition.Options{
		MinConfidence:  r.MinConfidence,
		CropInset:      r.CropInset,
		Samples:        r.Samples,
		Timeout:        r.Timeout,
		PlateLength:    r.PlateLength,
		MinPlateLength: r.MinPlateLength,
		Seed:           r.Seed,
	}
}
