package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	EnvSecret      = "STUDENT_SECRET"
	EnvGithubToken = "GITHUB_TOKEN"
	EnvGeminiKey   = "GEMINI_API_KEY"
	EnvBindAddr    = "BIND_ADDR"
	EnvConfigFile  = "CONFIG_FILE"

	DefaultBindAddr   = ":8080"
	DefaultConfigFile = "./deployer.yml"
)

// config holds the server tunables. Defaults can be overridden by an optional
// yaml file; secrets and the bind address come from env variables only.
type config struct {
	BindAddr       string `yaml:"bindAddr"`
	CodeModel      string `yaml:"codeModel"`
	ReadmeModel    string `yaml:"readmeModel"`
	NotifyTries    int    `yaml:"notifyTries"`
	NotifyDelaySec int    `yaml:"notifyDelaySec"`
	PagesSettleSec int    `yaml:"pagesSettleSec"`
	// from env
	secret      string
	githubToken string
	geminiKey   string
}

func (c *config) notifyDelay() time.Duration {
	return time.Duration(c.NotifyDelaySec) * time.Second
}

func (c *config) pagesSettle() time.Duration {
	return time.Duration(c.PagesSettleSec) * time.Second
}

func loadConf() (*config, error) {
	c := &config{
		BindAddr:       DefaultBindAddr,
		CodeModel:      "gemini-1.5-flash",
		ReadmeModel:    "gemini-2.5-flash",
		NotifyTries:    5,
		NotifyDelaySec: 1,
		PagesSettleSec: 30,
	}

	path := os.Getenv(EnvConfigFile)
	if path == "" {
		path = DefaultConfigFile
	}
	b, err := os.ReadFile(path)
	if err == nil {
		err = yaml.Unmarshal(b, c)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %s", path, err)
		}
		log.Println("Loaded config file:", path)
	}

	if addr := os.Getenv(EnvBindAddr); addr != "" {
		c.BindAddr = addr
	}

	c.secret = os.Getenv(EnvSecret)
	if c.secret == "" {
		return nil, fmt.Errorf("%s is not set", EnvSecret)
	}
	c.githubToken = os.Getenv(EnvGithubToken)
	if c.githubToken == "" {
		return nil, fmt.Errorf("%s is not set", EnvGithubToken)
	}
	c.geminiKey = os.Getenv(EnvGeminiKey)
	if c.geminiKey == "" {
		return nil, fmt.Errorf("%s is not set", EnvGeminiKey)
	}

	if c.NotifyTries < 1 {
		return nil, fmt.Errorf("notifyTries must be positive: %d", c.NotifyTries)
	}

	return c, nil
}
