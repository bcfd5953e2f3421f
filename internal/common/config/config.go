package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Postgres struct {
		Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
		Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
		User            string        `env:"POSTGRES_USER" envDefault:"postgres"`
		Password        string        `env:"POSTGRES_PASSWORD" envDefault:""`
		Database        string        `env:"POSTGRES_DB" envDefault:"mergeverse"`
		SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
		MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
		MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"5m"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Telegram struct {
		BotToken  string  `env:"BOT_TOKEN,required"`
		WebAppURL string  `env:"WEBAPP_URL" envDefault:"https://t.me/mergeverse_bot/app"`
		AdminIDs  []int64 `env:"ADMIN_IDS" envSeparator:","`
	}

	Cache struct {
		GiveawayListTTL time.Duration `env:"CACHE_GIVEAWAY_LIST_TTL" envDefault:"30s"`
		TopWinnersTTL   time.Duration `env:"CACHE_TOP_WINNERS_TTL" envDefault:"5m"`
	}

	Collection struct {
		// Размер стола крафта (сетка NxN)
		CraftGridSize int `env:"CRAFT_GRID_SIZE" envDefault:"4"`
	}

	Payment struct {
		NowPaymentsAPIKey string `env:"NOWPAYMENTS_API_KEY"`
		NowPaymentsIPNKey string `env:"NOWPAYMENTS_IPN_KEY"`
		TonAPIKey         string `env:"TON_API_KEY"`
		TonWalletAddress  string `env:"TON_WALLET_ADDRESS"`
		SuccessURL        string `env:"PAYMENT_SUCCESS_URL"`
		CancelURL         string `env:"PAYMENT_CANCEL_URL"`
		CallbackURL       string `env:"PAYMENT_CALLBACK_URL"`
	}

	Mailgun struct {
		Domain string `env:"MAILGUN_DOMAIN"`
		APIKey string `env:"MAILGUN_API_KEY"`
		From   string `env:"MAILGUN_FROM" envDefault:"MergeVerse <noreply@mergeverse.app>"`
	}
}

func Load() *Config {
	// .env может отсутствовать, в production переменные заданы напрямую
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}

// GetDSN собирает строку подключения к PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User,
		c.Postgres.Password, c.Postgres.Database, c.Postgres.SSLMode)
}

// IsAdmin проверяет, входит ли пользователь в список администраторов
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
