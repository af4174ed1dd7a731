package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Sana-jeyat/Trading-Dashboard/api"
	"github.com/Sana-jeyat/Trading-Dashboard/config"
	"github.com/Sana-jeyat/Trading-Dashboard/logger"
	"github.com/Sana-jeyat/Trading-Dashboard/price"
	"github.com/Sana-jeyat/Trading-Dashboard/rpc"
	"github.com/Sana-jeyat/Trading-Dashboard/store"
	"github.com/Sana-jeyat/Trading-Dashboard/swap"
	"github.com/Sana-jeyat/Trading-Dashboard/trader"
)

func main() {
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		logger.Setup(false)
		log.Fatal().Err(err).Msg("could not load configuration")
	}
	logger.Setup(cfg.Env.Debug)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := api.NewClient(cfg.Env.ApiEndpoint, cfg.Env.BotId, cfg.Env.BotToken)
	oracle := price.NewOracle(cfg.Env.PriceFeedUrl, decimal.NewFromFloat(cfg.Env.PriceConversion))

	gateway, err := rpc.Dial(ctx, cfg.Env.RpcEndpoint)
	if err != nil {
		log.Fatal().Err(err).Str("endpoint", cfg.Env.RpcEndpoint).Msg("could not reach chain rpc")
	}

	cache := store.New()
	engine := swap.NewEngine(gateway, cache)
	loop := trader.New(client, oracle, engine, client, cache, trader.NewCheckpoints(cfg.Env.CheckpointDir))

	log.Info().Str("bot_id", cfg.Env.BotId).Msg("bot starting, Ctrl+C to stop")

	if err := loop.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("trading loop terminated")
	}
	log.Info().Msg("bot stopped")
}
