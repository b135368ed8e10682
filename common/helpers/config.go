package helpers

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/phuslu/log"
	"gopkg.in/yaml.v2"
)

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DBNum    int    `yaml:"dbNum"`
}

type ServerConfig struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"loglevel"`
	Console  bool   `yaml:"console"`
}

type JobsConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	QueueBuffer  int           `yaml:"queuebuffer"`
	ErrorMaxLen  int           `yaml:"errormaxlen"`
	DrainTimeout time.Duration `yaml:"draintimeout"`
}

type WorkflowConfig struct {
	MaxSteps       int `yaml:"maxsteps"`
	MaxTransitions int `yaml:"maxtransitions"`
}

type StatusConfig struct {
	PollInterval    time.Duration `yaml:"pollinterval"`
	LongPollTimeout time.Duration `yaml:"longpolltimeout"`
}

type AgentsConfig struct {
	Attempts          int           `yaml:"attempts"`
	InitialBackoff    time.Duration `yaml:"initialbackoff"`
	MaxBackoff        time.Duration `yaml:"maxbackoff"`
	BackoffMultiplier float64       `yaml:"backoffmultiplier"`
	EvaluationRounds  int           `yaml:"evaluationrounds"`
}

type InferenceConfig struct {
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	APIKey       string  `yaml:"apikey"`
	BaseURL      string  `yaml:"baseurl"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"maxtokens"`
	RatePerMin   int     `yaml:"ratepermin"`
	RateBurst    int     `yaml:"rateburst"`
}

type SandboxConfig struct {
	BaseURL      string        `yaml:"baseurl"`
	PollInterval time.Duration `yaml:"pollinterval"`
	Timeout      time.Duration `yaml:"timeout"`
}

type RenderConfig struct {
	ServiceURL   string        `yaml:"serviceurl"`
	SceneName    string        `yaml:"scenename"`
	Quality      string        `yaml:"quality"`
	PollInterval time.Duration `yaml:"pollinterval"`
	WaitChunk    time.Duration `yaml:"waitchunk"`
	Timeout      time.Duration `yaml:"timeout"`
	VerifyAsset  bool          `yaml:"verifyasset"`
}

type PersistenceConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

/**
configuration for the orchestrator webapp
*/
type Config struct {
	Redis       RedisConfig       `yaml:"redis"`
	Server      ServerConfig      `yaml:"server"`
	Jobs        JobsConfig        `yaml:"jobs"`
	Workflow    WorkflowConfig    `yaml:"workflow"`
	Status      StatusConfig      `yaml:"status"`
	Agents      AgentsConfig      `yaml:"agents"`
	Inference   InferenceConfig   `yaml:"inference"`
	Sandbox     SandboxConfig     `yaml:"sandbox"`
	Render      RenderConfig      `yaml:"render"`
	Persistence PersistenceConfig `yaml:"persistence"`
}

type StoreConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"inmemory"`
}

type WebhookConfig struct {
	Secret string `yaml:"secret"`
}

type GithubDispatchConfig struct {
	Token     string `yaml:"token"`
	Owner     string `yaml:"owner"`
	Repo      string `yaml:"repo"`
	EventType string `yaml:"eventtype"`
	BaseURL   string `yaml:"baseurl"`
}

type KubernetesDispatchConfig struct {
	KubeConfig   string `yaml:"kubeconfig"`
	Namespace    string `yaml:"namespace"`
	TemplateFile string `yaml:"templatefile"`
	WebhookURL   string `yaml:"webhookurl"`
}

type DispatchConfig struct {
	Mode       string                   `yaml:"mode"`
	Github     GithubDispatchConfig     `yaml:"github"`
	Kubernetes KubernetesDispatchConfig `yaml:"kubernetes"`
}

type ResultConfig struct {
	PollInterval   time.Duration `yaml:"pollinterval"`
	DefaultTimeout time.Duration `yaml:"defaulttimeout"`
	MaxTimeout     time.Duration `yaml:"maxtimeout"`
}

type ReaperConfig struct {
	Schedule  string        `yaml:"schedule"`
	Retention time.Duration `yaml:"retention"`
}

/**
configuration for the render dispatch service
*/
type RenderServiceConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Result   ResultConfig   `yaml:"result"`
	Reaper   ReaperConfig   `yaml:"reaper"`
}

func DefaultConfig() Config {
	return Config{
		Redis:  RedisConfig{Address: "localhost:6379"},
		Server: ServerConfig{Listen: ":9000", LogLevel: "info"},
		Jobs: JobsConfig{
			TTL:          4 * time.Hour,
			QueueBuffer:  64,
			ErrorMaxLen:  500,
			DrainTimeout: 30 * time.Second,
		},
		Workflow: WorkflowConfig{MaxSteps: 15, MaxTransitions: 150},
		Status: StatusConfig{
			PollInterval:    5 * time.Second,
			LongPollTimeout: 45 * time.Minute,
		},
		Agents: AgentsConfig{
			Attempts:          3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2,
			EvaluationRounds:  3,
		},
		Inference: InferenceConfig{
			Provider:    "anthropic",
			Temperature: 0.2,
			MaxTokens:   4096,
			RatePerMin:  60,
			RateBurst:   5,
		},
		Sandbox: SandboxConfig{
			PollInterval: 5 * time.Second,
			Timeout:      30 * time.Minute,
		},
		Render: RenderConfig{
			SceneName:    "GeneratedScene",
			Quality:      "high",
			PollInterval: 3 * time.Second,
			WaitChunk:    60 * time.Second,
			Timeout:      15 * time.Minute,
		},
		Persistence: PersistenceConfig{Driver: "sqlite", DSN: "file:enginimate.db", Table: "generated_videos"},
	}
}

func DefaultRenderServiceConfig() RenderServiceConfig {
	return RenderServiceConfig{
		Server: ServerConfig{Listen: ":9001", LogLevel: "info"},
		Store:  StoreConfig{Path: "data/renderjobs"},
		Dispatch: DispatchConfig{
			Mode:   "github",
			Github: GithubDispatchConfig{EventType: "render-manim"},
		},
		Result: ResultConfig{
			PollInterval:   3 * time.Second,
			DefaultTimeout: 300 * time.Second,
			MaxTimeout:     900 * time.Second,
		},
		Reaper: ReaperConfig{Schedule: "@every 1h", Retention: 48 * time.Hour},
	}
}

/**
reads the given yaml file, expanding ${VAR} references from the environment, into `into`.
values already present in `into` act as defaults
*/
func readYaml(configFile string, into interface{}) error {
	configBytes, readErr := ioutil.ReadFile(configFile)
	if readErr != nil {
		log.Error().Msgf("Could not read config from '%s': %s", configFile, readErr)
		return readErr
	}

	expanded := os.ExpandEnv(string(configBytes))
	err := yaml.Unmarshal([]byte(expanded), into)
	if err != nil {
		log.Error().Msgf("Could not understand config from '%s': %s", configFile, err)
		return err
	}
	return nil
}

func overrideFromEnv(target *string, varName string) {
	if v := os.Getenv(varName); v != "" {
		*target = v
	}
}

func ReadConfig(configFile string) (*Config, error) {
	conf := DefaultConfig()
	if err := readYaml(configFile, &conf); err != nil {
		return nil, err
	}

	overrideFromEnv(&conf.Redis.Address, "REDIS_ADDRESS")
	overrideFromEnv(&conf.Redis.Password, "REDIS_PASSWORD")
	overrideFromEnv(&conf.Inference.APIKey, "INFERENCE_API_KEY")
	overrideFromEnv(&conf.Sandbox.BaseURL, "SANDBOX_URL")
	overrideFromEnv(&conf.Render.ServiceURL, "RENDER_SERVICE_URL")
	overrideFromEnv(&conf.Persistence.DSN, "DATABASE_URL")
	return &conf, nil
}

func ReadRenderServiceConfig(configFile string) (*RenderServiceConfig, error) {
	conf := DefaultRenderServiceConfig()
	if err := readYaml(configFile, &conf); err != nil {
		return nil, err
	}

	overrideFromEnv(&conf.Webhook.Secret, "WEBHOOK_SECRET")
	overrideFromEnv(&conf.Dispatch.Github.Token, "GITHUB_TOKEN")
	overrideFromEnv(&conf.Dispatch.Kubernetes.WebhookURL, "WEBHOOK_URL")
	return &conf, nil
}
