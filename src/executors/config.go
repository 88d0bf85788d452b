package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Username    string        `envconfig:"USER_NAME"` // optional: reconcile for one user only
	FeedURL     string        `envconfig:"SIGNAL_FEED_URL" default:"http://localhost:8085"`
	QuoteURL    string        `envconfig:"QUOTE_URL" default:"http://localhost:8086"`
	LoopPeriod  time.Duration `envconfig:"LOOP_PERIOD" default:"5m"`
	ForceSync   bool          `envconfig:"FORCE_SYNC" default:"false"` // bypass the market-hours gate
	RunOnceMode bool          `envconfig:"RUN_ONCE" default:"false"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
