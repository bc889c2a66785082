package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string         `yaml:"env" env:"ENV" env-default:"local"`
	DatabaseDSN string         `yaml:"database_dsn" env:"DATABASE_URL" env-required:"true"`
	HTTPServer  HTTPServer     `yaml:"http_server"`
	Redis       RedisConfig    `yaml:"redis"`
	Messages    MessagesConfig `yaml:"messages"`
	Repair      RepairConfig   `yaml:"repair"`
	S3          S3Config       `yaml:"s3"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8082"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:""`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env-default:"0"`
}

type MessagesConfig struct {
	DefaultPageLimit int `yaml:"default_page_limit" env-default:"20"`
	MaxPageLimit     int `yaml:"max_page_limit" env-default:"100"`
	MaxContentLength int `yaml:"max_content_length" env-default:"4096"`
}

type RepairConfig struct {
	// Cron-style spec for the periodic unread recount, empty disables it.
	RecountSchedule string `yaml:"recount_schedule" env-default:"@every 1h"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket" env:"S3_BUCKET" env-default:""`
	Region    string `yaml:"region" env:"S3_REGION" env-default:""`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:""`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY" env-default:""`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY" env-default:""`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config %s", err)
	}

	return &cfg
}
