package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"dealflow/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ProviderFallback is the built-in mail provider used when no
// EmailProviderSetting matches the user's domain.
type ProviderFallback struct {
	Domain       string `json:"domain"`
	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port"`
	IMAPSecurity string `json:"imap_security"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPSecurity string `json:"smtp_security"`
}

type Config struct {
	Environment          string           `json:"environment"`
	EncryptionKey        string           `json:"-"`
	JWTSecret            string           `json:"-"`
	ServerPort           string           `json:"server_port"`
	DBHost               string           `json:"db_host"`
	DBPort               string           `json:"db_port"`
	DBUser               string           `json:"db_user"`
	DBPassword           string           `json:"-"`
	DBName               string           `json:"db_name"`
	DBSSLMode            string           `json:"db_ssl_mode"`
	DBMaxIdleConns       int              `json:"db_max_idle_conns"`
	DBMaxOpenConns       int              `json:"db_max_open_conns"`
	SentryDSN            string           `json:"-"`
	CORSAllowedOrigins   string           `json:"cors_allowed_origins"`
	RateLimitTestMailbox int              `json:"rate_limit_test_mailbox"`
	SyncInterval         time.Duration    `json:"sync_interval"`
	Redis                RedisConfig      `json:"redis"`
	Provider             ProviderFallback `json:"provider"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "dealflow"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		SentryDSN:            getEnv("SENTRY_DSN", ""),
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		RateLimitTestMailbox: getEnvAsInt("RATE_LIMIT_TEST_MAILBOX", 5),
		SyncInterval:         getEnvAsDuration("SYNC_INTERVAL", 5*time.Minute),

		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ADDRESS", "") != "",
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		Provider: ProviderFallback{
			Domain:       getEnv("MAIL_PROVIDER_DOMAIN", "stackmail.com"),
			IMAPHost:     getEnv("MAIL_PROVIDER_IMAP_HOST", "imap.stackmail.com"),
			IMAPPort:     getEnvAsInt("MAIL_PROVIDER_IMAP_PORT", 993),
			IMAPSecurity: getEnv("MAIL_PROVIDER_IMAP_SECURITY", "ssl"),
			SMTPHost:     getEnv("MAIL_PROVIDER_SMTP_HOST", "smtp.stackmail.com"),
			SMTPPort:     getEnvAsInt("MAIL_PROVIDER_SMTP_PORT", 465),
			SMTPSecurity: getEnv("MAIL_PROVIDER_SMTP_SECURITY", "ssl"),
		},
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if AppConfig.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("✅ Successfully connected to the database")
	log.Println("🔄 Starting database migration...")
	if err := MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("✅ Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		log.Printf("⚠️ Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Sync interval: %s", AppConfig.SyncInterval)
	log.Printf("Sentry: %t, Redis: %t",
		AppConfig.SentryDSN != "",
		AppConfig.Redis.Enabled)
}

// MigrateDB runs gorm auto-migration for every model. Exposed so test
// fixtures can migrate an in-memory database with the same schema.
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Startup{},
		&models.Contact{},
		&models.EmailProviderSetting{},
		&models.EmailCredential{},
		&models.Conversation{},
		&models.Message{},
		&models.EmailAttachment{},
		&models.WeeklyActivityPlan{},
		&models.WeeklyMetricDefinition{},
	)
}
