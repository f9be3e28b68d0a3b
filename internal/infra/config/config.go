package config

import (
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	} `yaml:"server"`
	TelegramBot struct {
		Token        string        `yaml:"token"`
		Username     string        `yaml:"username"`
		PollTimeout  time.Duration `yaml:"poll_timeout"`
		TimerRefresh time.Duration `yaml:"timer_refresh"`
		Debug        bool          `yaml:"debug"`
		// Mode long_poll или webhook
		Mode       string `yaml:"mode"`
		WebhookURL string `yaml:"webhook_url"`
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"telegram_bot"`
	Database struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"dbname"`
	} `yaml:"database"`
	Backend struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"backend"`
	Assessment struct {
		// TickInterval период обратного отсчета, по умолчанию одна секунда
		TickInterval time.Duration `yaml:"tick_interval"`
		// ResyncEvery через сколько тиков сверять оставшееся время с сервером (0 - не сверять)
		ResyncEvery int `yaml:"resync_every"`
	} `yaml:"assessment"`
	Report struct {
		// FontDir каталог со шрифтами DejaVu для кириллицы в PDF
		FontDir string `yaml:"font_dir"`
	} `yaml:"report"`
	Logging Logging `yaml:"logging"`
}

// Logging настройки логгера и ротации файлов
type Logging struct {
	Level      string `yaml:"level"`
	Directory  string `yaml:"directory"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
}

// DSN строка подключения к PostgreSQL
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name)
}

func LoadConfig(filename string) (*Config, error) {
	// .env необязателен, переменные окружения могут быть заданы снаружи
	_ = godotenv.Load()

	config := defaultConfig()

	f, err := os.Open(filename)
	switch {
	case err == nil:
		defer func(f *os.File) {
			err := f.Close()
			if err != nil {
				fmt.Println("f.Close() failed ", err)
			}
		}(f)

		if err := yaml.NewDecoder(f).Decode(config); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filename, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// конфигурация полностью из окружения
	default:
		return nil, err
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func defaultConfig() *Config {
	c := &Config{}
	c.Server.Host = "0.0.0.0"
	c.Server.Port = "8080"
	c.TelegramBot.PollTimeout = 10 * time.Second
	c.TelegramBot.TimerRefresh = 15 * time.Second
	c.TelegramBot.Mode = "long_poll"
	c.TelegramBot.ListenAddr = ":8443"
	c.Database.Host = "localhost"
	c.Database.Port = "5432"
	c.Backend.Timeout = 15 * time.Second
	c.Assessment.TickInterval = time.Second
	c.Assessment.ResyncEvery = 30
	c.Report.FontDir = "assets/fonts"
	c.Logging = Logging{
		Level:      "info",
		Directory:  "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
		Console:    true,
	}
	return c
}

// applyEnv переопределяет значения из файла переменными окружения
func applyEnv(c *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("SERVER_HOST", &c.Server.Host)
	setString("SERVER_PORT", &c.Server.Port)
	setString("TELEGRAM_BOT_TOKEN", &c.TelegramBot.Token)
	setString("TELEGRAM_BOT_USERNAME", &c.TelegramBot.Username)
	setString("BOT_MODE", &c.TelegramBot.Mode)
	setString("WEBHOOK_URL", &c.TelegramBot.WebhookURL)
	setString("WEBHOOK_LISTEN_ADDR", &c.TelegramBot.ListenAddr)
	setString("DATABASE_HOST", &c.Database.Host)
	setString("DATABASE_PORT", &c.Database.Port)
	setString("DATABASE_USER", &c.Database.User)
	setString("DATABASE_PASSWORD", &c.Database.Password)
	setString("DATABASE_NAME", &c.Database.Name)
	setString("BACKEND_BASE_URL", &c.Backend.BaseURL)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_DIR", &c.Logging.Directory)
	setString("REPORT_FONT_DIR", &c.Report.FontDir)

	if v := os.Getenv("BACKEND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BACKEND_TIMEOUT %q: %w", v, err)
		}
		c.Backend.Timeout = d
	}

	if v := os.Getenv("DEBUG"); v != "" {
		c.TelegramBot.Debug = v == "true" || v == "1"
	}

	if v := os.Getenv("RESYNC_EVERY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RESYNC_EVERY %q: %w", v, err)
		}
		c.Assessment.ResyncEvery = n
	}

	return nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.TelegramBot.Token == "" {
		return errors.New("telegram_bot.token is required")
	}
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive, got %s", c.Backend.Timeout)
	}
	if c.Assessment.TickInterval <= 0 {
		return fmt.Errorf("assessment.tick_interval must be positive, got %s", c.Assessment.TickInterval)
	}
	if c.Assessment.ResyncEvery < 0 {
		return fmt.Errorf("assessment.resync_every must not be negative, got %d", c.Assessment.ResyncEvery)
	}
	if c.TelegramBot.TimerRefresh <= 0 {
		return fmt.Errorf("telegram_bot.timer_refresh must be positive, got %s", c.TelegramBot.TimerRefresh)
	}
	return nil
}
