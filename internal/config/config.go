// Package config reads process configuration from the environment and an
// optional .env file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"5000"`
	StaticDir string `env:"STATIC_DIR" envDefault:"."`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	OpenRouterAPIKey  string  `env:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string  `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	Model             string  `env:"MODEL_NAME" envDefault:"meta-llama/llama-3.1-8b-instruct"`
	Temperature       float64 `env:"TEMPERATURE" envDefault:"0.7"`
	MaxTokens         int     `env:"MAX_TOKENS" envDefault:"1000"`
	// HTTPReferer and AppTitle attribute traffic on OpenRouter.
	HTTPReferer string `env:"HTTP_REFERER" envDefault:"http://localhost"`
	AppTitle    string `env:"APP_TITLE" envDefault:"Crypto Chatbot"`

	FreeCryptoAPIKey  string `env:"FREECRYPTO_API_KEY"`
	FreeCryptoBaseURL string `env:"FREECRYPTO_BASE_URL" envDefault:"https://api.freecryptoapi.com/v1"`

	SystemPromptPath  string `env:"SYSTEM_PROMPT_PATH" envDefault:"systemprompt.txt"`
	KnowledgeBasePath string `env:"KNOWLEDGE_BASE_PATH" envDefault:"Crypto_Knowledge_Base.md"`

	// StateTable selects DynamoDB memory; empty keeps memory in process.
	StateTable string `env:"STATE_TABLE"`
	// StateTTL is how long DynamoDB keeps memory items.
	StateTTL time.Duration `env:"STATE_TTL" envDefault:"720h"`
	// ParamPrefix selects Parameter Store for the prompt and, when no API key
	// is set, the OpenRouter token.
	ParamPrefix string `env:"PARAM_PREFIX"`

	ConversationID    string `env:"CONVERSATION_ID" envDefault:"default"`
	MaxContextItems   int    `env:"MAX_CONTEXT_ITEMS" envDefault:"20"`
	MaxMessageLength  int    `env:"MAX_MESSAGE_LENGTH" envDefault:"4000"`
	MaxToolIterations int    `env:"MAX_TOOL_ITERATIONS" envDefault:"5"`

	ChatURL         string        `env:"ATLAS_CHAT_URL" envDefault:"http://localhost:5000/api/chat"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the given dotenv files (".env" when none are named) without
// overriding variables already set, then parses the environment. Missing
// dotenv files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, errors.Wrapf(err, "config: load %s", f)
		}
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: parse environment")
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("config: PORT %d out of range", c.Port)
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("config: MODEL_NAME must not be empty")
	}
	if c.MaxContextItems < 0 || c.MaxMessageLength < 0 || c.MaxToolIterations < 0 {
		return errors.New("config: limits must not be negative")
	}
	if c.StateTTL < 0 {
		return errors.New("config: STATE_TTL must not be negative")
	}
	return nil
}

// UsesParamStore reports whether AWS Parameter Store is configured.
func (c Config) UsesParamStore() bool {
	return strings.TrimSpace(c.ParamPrefix) != ""
}

// UsesDynamoDB reports whether conversation memory lives in DynamoDB.
func (c Config) UsesDynamoDB() bool {
	return strings.TrimSpace(c.StateTable) != ""
}
