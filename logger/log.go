package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	CategoryField = "category"
)

const (
	CategoryPrice  = "price"
	CategoryChain  = "chain"
	CategorySwap   = "swap"
	CategoryTrade  = "trade"
	CategoryReport = "report"
)

func WithCategory(category string) func(e *zerolog.Event) {
	return func(e *zerolog.Event) {
		e.Str(CategoryField, category)
	}
}

func WithChainCategory(e *zerolog.Event) {
	e.Str(CategoryField, CategoryChain)
}

func WithSwapCategory(e *zerolog.Event) {
	e.Str(CategoryField, CategorySwap)
}

// Setup configures the global zerolog logger for the process.
func Setup(debug bool) {
	zerolog.TimeFieldFormat = "2006-01-02 15:04:05"
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	out := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.DateTime,
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
