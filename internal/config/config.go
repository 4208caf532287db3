package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Driver string
		Path   string
		DSN    string
	}
	Auth struct {
		JWTSecret   string
		BcryptCost  int
		HashWorkers int
	}
	Gemini struct {
		APIKey   string
		Endpoint string
		Model    string
	}
	Video struct {
		URL string
	}
	Storage struct {
		Bucket   string
		VideoKey string
		Region   string
		Endpoint string
	}
	AWS struct {
		Profile string
	}
	Public struct {
		Dir string
	}
	Log struct {
		Level string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("MODEMODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:3000")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/modemode.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("auth.hashworkers", 0)
	v.SetDefault("gemini.apikey", "")
	v.SetDefault("gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-1.5-pro")
	v.SetDefault("video.url", "https://sample-videos.com/video321/mp4/720/big_buck_bunny_720p_1mb.mp4")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.videokey", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("public.dir", "public")
	v.SetDefault("log.level", "info")

	// legacy variable names from earlier deployments
	_ = v.BindEnv("auth.jwtsecret", "MODEMODE_AUTH_JWTSECRET", "JWT_SECRET")
	_ = v.BindEnv("gemini.apikey", "MODEMODE_GEMINI_APIKEY", "GEMINI_API_KEY")
	_ = v.BindEnv("database.dsn", "MODEMODE_DATABASE_DSN", "DATABASE_URL")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && os.Getenv("MODEMODE_SERVER_ADDR") == "" {
		cfg.Server.Addr = "0.0.0.0:" + port
	}

	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth jwt secret is required")
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
