package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"scout/internal/common"
)

// Config holds everything an operator can tune without touching code
type Config struct {
	// Cycle is how often the poll driver runs
	Cycle time.Duration
	// CycleDeadline bounds one whole cycle; it must be shorter than Cycle
	// so a slow upstream cannot stall the next tick
	CycleDeadline time.Duration
	// Workers is the number of concurrent upstream fetches within a cycle
	Workers int

	Policy PolicyConfig

	Riot    RiotConfig
	Discord DiscordConfig

	LogLevel string
}

// PolicyConfig is the polling interval policy table. Tiers are matched
// against the time since the account's last known match; the first tier
// whose Within covers that gap decides the check interval
type PolicyConfig struct {
	Tiers []TierConfig
	// Default applies to accounts with no match history at all
	Default time.Duration
	// Max caps the interval for accounts dormant beyond every tier
	Max time.Duration
}

type TierConfig struct {
	Within   time.Duration
	Interval time.Duration
}

type RiotConfig struct {
	// Routing region for account and match requests ("europe", "americas", "asia")
	Region string
	// Restrictions of the Riot API key, e.g. 20 requests every 1s
	// and 100 requests every 2m for a development key
	Restrictions []common.Restriction
	// Penalty applied when the upstream answers 429 despite our bookkeeping
	RateLimitPenalty time.Duration
	// Timeout for a single HTTP request
	RequestTimeout time.Duration
	// Housekeeping is how often cached riot ids are refreshed
	Housekeeping time.Duration
}

type DiscordConfig struct {
	// SendsPerSecond paces channel sends during notification fan out
	SendsPerSecond float64
	// OwnerCooldown is the minimal gap between owner notifications
	// for the same guild
	OwnerCooldown time.Duration
}

// Secrets come from the environment, not from the config file
type Secrets struct {
	DiscordToken string
	RiotApiKey   string
	Database     string
}

// The yaml facing mirror of Config. Durations are Go duration strings
type fileConfig struct {
	Cycle         Duration `yaml:"cycle"`
	CycleDeadline Duration `yaml:"cycle_deadline"`
	Workers       int      `yaml:"workers"`
	Policy        struct {
		Tiers []struct {
			Within   Duration `yaml:"within"`
			Interval Duration `yaml:"interval"`
		} `yaml:"tiers"`
		Default Duration `yaml:"default"`
		Max     Duration `yaml:"max"`
	} `yaml:"policy"`
	Riot struct {
		Region       string `yaml:"region"`
		Restrictions []struct {
			Requests int      `yaml:"requests"`
			Duration Duration `yaml:"duration"`
		} `yaml:"restrictions"`
		RateLimitPenalty Duration `yaml:"rate_limit_penalty"`
		RequestTimeout   Duration `yaml:"request_timeout"`
		Housekeeping     Duration `yaml:"housekeeping"`
	} `yaml:"riot"`
	Discord struct {
		SendsPerSecond float64  `yaml:"sends_per_second"`
		OwnerCooldown  Duration `yaml:"owner_cooldown"`
	} `yaml:"discord"`
	LogLevel string `yaml:"log_level"`
}

func Load(filename string) (Config, error) {

	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config file %s: %w", filename, err)
	}

	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("could not parse config file %s: %w", filename, err)
	}

	cfg := Config{
		Cycle:         raw.Cycle.Std(),
		CycleDeadline: raw.CycleDeadline.Std(),
		Workers:       raw.Workers,
		Policy: PolicyConfig{
			Default: raw.Policy.Default.Std(),
			Max:     raw.Policy.Max.Std(),
		},
		Riot: RiotConfig{
			Region:           raw.Riot.Region,
			RateLimitPenalty: raw.Riot.RateLimitPenalty.Std(),
			RequestTimeout:   raw.Riot.RequestTimeout.Std(),
			Housekeeping:     raw.Riot.Housekeeping.Std(),
		},
		Discord: DiscordConfig{
			SendsPerSecond: raw.Discord.SendsPerSecond,
			OwnerCooldown:  raw.Discord.OwnerCooldown.Std(),
		},
		LogLevel: raw.LogLevel,
	}
	for _, tier := range raw.Policy.Tiers {
		cfg.Policy.Tiers = append(cfg.Policy.Tiers, TierConfig{Within: tier.Within.Std(), Interval: tier.Interval.Std()})
	}
	for _, restriction := range raw.Riot.Restrictions {
		cfg.Riot.Restrictions = append(cfg.Riot.Restrictions, common.Restriction{Requests: restriction.Requests, Duration: restriction.Duration.Std()})
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadSecrets() (Secrets, error) {

	secrets := Secrets{
		DiscordToken: os.Getenv("SCOUT_DISCORD_TOKEN"),
		RiotApiKey:   os.Getenv("SCOUT_RIOT_API_KEY"),
		Database:     os.Getenv("SCOUT_DATABASE"),
	}
	if secrets.DiscordToken == "" {
		return Secrets{}, fmt.Errorf("SCOUT_DISCORD_TOKEN is not set")
	}
	if secrets.RiotApiKey == "" {
		return Secrets{}, fmt.Errorf("SCOUT_RIOT_API_KEY is not set")
	}
	if secrets.Database == "" {
		secrets.Database = "scout.db"
	}
	return secrets, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Cycle <= 0 {
		cfg.Cycle = 30 * time.Second
	}
	if cfg.CycleDeadline <= 0 || cfg.CycleDeadline >= cfg.Cycle {
		cfg.CycleDeadline = cfg.Cycle * 9 / 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Policy.Default <= 0 {
		cfg.Policy.Default = 10 * time.Minute
	}
	if cfg.Policy.Max <= 0 {
		cfg.Policy.Max = 2 * time.Hour
	}
	if cfg.Riot.Region == "" {
		cfg.Riot.Region = "europe"
	}
	if len(cfg.Riot.Restrictions) == 0 {
		// Development key limits
		cfg.Riot.Restrictions = []common.Restriction{
			{Requests: 20, Duration: time.Second},
			{Requests: 100, Duration: 2 * time.Minute},
		}
	}
	if cfg.Riot.RateLimitPenalty <= 0 {
		cfg.Riot.RateLimitPenalty = 2 * time.Minute
	}
	if cfg.Riot.RequestTimeout <= 0 {
		cfg.Riot.RequestTimeout = 10 * time.Second
	}
	if cfg.Riot.Housekeeping <= 0 {
		cfg.Riot.Housekeeping = 12 * time.Hour
	}
	if cfg.Discord.SendsPerSecond <= 0 {
		cfg.Discord.SendsPerSecond = 5
	}
	if cfg.Discord.OwnerCooldown <= 0 {
		cfg.Discord.OwnerCooldown = time.Hour
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func (cfg *Config) validate() error {
	previous := time.Duration(0)
	for i, tier := range cfg.Policy.Tiers {
		if tier.Within <= 0 || tier.Interval <= 0 {
			return fmt.Errorf("policy tier %d: within and interval must be positive", i)
		}
		if tier.Within <= previous {
			return fmt.Errorf("policy tier %d: tiers must be sorted by ascending within", i)
		}
		previous = tier.Within
	}
	for i, restriction := range cfg.Riot.Restrictions {
		if restriction.Requests <= 0 || restriction.Duration <= 0 {
			return fmt.Errorf("riot restriction %d: requests and duration must be positive", i)
		}
	}
	return nil
}
