package env

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultRPCEndpoint = "https://api.mainnet-beta.solana.com"

// ConfigurationError means a required process variable is missing or unusable.
// It is fatal: the process must not enter its main loop.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Key, e.Reason)
}

type Vars struct {
	TelegramBotToken string
	TargetChannelID  int64
	SourceChannelID  int64
	AdminChatID      int64
	LogChatID        int64

	RPCEndpoint string
	DatabaseURL string
	RedisURL    string

	Port        string
	ConfigPath  string
	Environment string
}

var hiddenKeys = map[string]bool{
	"TELEGRAM_BOT_TOKEN": true,
	"DATABASE_URL":       true,
	"REDIS_URL":          true,
	"RPC_ENDPOINT":       true,
}

func loadEnvVariable(key string, isRequired bool) (string, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if isRequired && value == "" {
		return "", &ConfigurationError{Key: key, Reason: "is required but not set"}
	}
	switch {
	case value == "":
		log.Printf("INFO: Environment variable %s is not set.", key)
	case hiddenKeys[key]:
		log.Printf("INFO: Loaded %s (value hidden)", key)
	default:
		log.Printf("INFO: Loaded %s = %s", key, value)
	}
	return value, nil
}

func loadInt64Env(key string, required bool) (int64, error) {
	strValue, err := loadEnvVariable(key, required)
	if err != nil {
		return 0, err
	}
	if strValue == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		return 0, &ConfigurationError{Key: key, Reason: fmt.Sprintf("must be an integer, got %q", strValue)}
	}
	return id, nil
}

// LoadEnv reads .env (if present) and the process environment.
func LoadEnv() (*Vars, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: .env file not found or error loading, relying on system environment variables.")
	} else {
		log.Println("INFO: .env file loaded successfully.")
	}
	return FromEnvironment()
}

// FromEnvironment reads only the process environment.
func FromEnvironment() (*Vars, error) {
	var (
		v   Vars
		err error
	)

	if v.TelegramBotToken, err = loadEnvVariable("TELEGRAM_BOT_TOKEN", true); err != nil {
		return nil, err
	}
	if v.TargetChannelID, err = loadInt64Env("TARGET_CHANNEL_ID", true); err != nil {
		return nil, err
	}
	if v.TargetChannelID == 0 {
		return nil, &ConfigurationError{Key: "TARGET_CHANNEL_ID", Reason: "must be non-zero"}
	}
	if v.SourceChannelID, err = loadInt64Env("SOURCE_CHANNEL_ID", false); err != nil {
		return nil, err
	}
	if v.SourceChannelID == 0 {
		v.SourceChannelID = v.TargetChannelID
		log.Printf("INFO: SOURCE_CHANNEL_ID not set, listening on target channel %d", v.SourceChannelID)
	}
	if v.AdminChatID, err = loadInt64Env("TELEGRAM_ADMIN_CHAT_ID", false); err != nil {
		return nil, err
	}
	if v.LogChatID, err = loadInt64Env("TELEGRAM_LOG_CHAT_ID", false); err != nil {
		return nil, err
	}

	if v.RPCEndpoint, err = loadEnvVariable("RPC_ENDPOINT", false); err != nil {
		return nil, err
	}
	if v.RPCEndpoint == "" {
		v.RPCEndpoint = DefaultRPCEndpoint
	}
	if v.DatabaseURL, err = loadEnvVariable("DATABASE_URL", false); err != nil {
		return nil, err
	}
	if v.RedisURL, err = loadEnvVariable("REDIS_URL", false); err != nil {
		return nil, err
	}

	if v.Port, err = loadEnvVariable("PORT", false); err != nil {
		return nil, err
	}
	if v.Port == "" {
		v.Port = "8080"
		log.Printf("INFO: PORT not set, defaulting to %s", v.Port)
	}
	if v.ConfigPath, err = loadEnvVariable("CONFIG_PATH", false); err != nil {
		return nil, err
	}
	if v.ConfigPath == "" {
		v.ConfigPath = "agent/config.yaml"
	}
	if v.Environment, err = loadEnvVariable("APP_ENV", false); err != nil {
		return nil, err
	}
	if v.Environment == "" {
		v.Environment = "development"
	}

	if v.DatabaseURL == "" {
		log.Println("WARN: DATABASE_URL is not set. Watchlist snapshots will use the JSON file store.")
	}
	log.Println("INFO: Environment variables loading process complete.")
	return &v, nil
}
