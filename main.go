package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scout/internal/bot"
	"scout/internal/common"
	"scout/internal/config"
	"scout/internal/riotapi"
	"scout/internal/store"
	"scout/internal/tracker"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("Exiting")
		os.Exit(1)
	}
}

func run() error {

	// Secrets come from the environment; .env is a convenience for
	// development setups
	_ = godotenv.Load(".env")

	configFile := os.Getenv("SCOUT_CONFIG")
	if configFile == "" {
		configFile = "scout.yaml"
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	secrets, err := config.LoadSecrets()
	if err != nil {
		return err
	}

	// Logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("unknown log level %q: %w", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Database
	db, err := store.Open(secrets.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	// Riot API
	api := riotapi.NewRiotApi(db, secrets.RiotApiKey, cfg.Riot.Region, cfg.Riot.Restrictions, cfg.Riot.RateLimitPenalty, cfg.Riot.RequestTimeout)

	// Discord bot
	states := tracker.NewStateTracker(db)
	discordBot := bot.NewBot(secrets.DiscordToken, db, api, states)
	if err := discordBot.Open(); err != nil {
		return err
	}
	defer discordBot.Close()

	// Poll driver
	policy := tracker.IntervalPolicy{Default: cfg.Policy.Default, Max: cfg.Policy.Max}
	for _, tier := range cfg.Policy.Tiers {
		policy.Tiers = append(policy.Tiers, tracker.Tier{Within: tier.Within, Interval: tier.Interval})
	}
	sender := bot.NewChannelSender(discordBot.Session(), cfg.Discord.SendsPerSecond)
	owner := bot.NewGuildOwnerNotifier(discordBot.Session())
	guard := tracker.NewDeliveryGuard(sender, owner, cfg.Discord.OwnerCooldown)
	resolver := tracker.NewResolver(db)
	fetcher := riotapi.NewFetcher(api)
	driver := tracker.NewDriver(db, states, fetcher, resolver, guard, policy, cfg.Workers, cfg.CycleDeadline)

	// The riot id cache is refreshed from time to time, piggybacking on
	// the poll tick
	housekeeping := common.NewTimedExecutor(cfg.Riot.Housekeeping, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.CycleDeadline)
		defer cancel()
		puuids, err := db.TrackedPuuids(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Could not list tracked puuids for housekeeping")
			return
		}
		keep := make(map[riotapi.Puuid]struct{}, len(puuids))
		for puuid := range puuids {
			keep[riotapi.Puuid(puuid)] = struct{}{}
		}
		api.Housekeeping(ctx, keep)
	})

	// One poll cycle per tick. SkipIfStillRunning backs the driver's own
	// overlap guard: a slow cycle delays the next tick instead of
	// stacking up
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.Cycle), func() {
		driver.RunCycle(context.Background())
		housekeeping.Execute()
	}); err != nil {
		return fmt.Errorf("could not schedule poll cycle: %w", err)
	}
	scheduler.Start()
	log.Info().Dur("cycle", cfg.Cycle).Int("workers", cfg.Workers).Msg("Scout is running")

	// Keep running until interrupted
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	<-scheduler.Stop().Done()
	return nil
}
