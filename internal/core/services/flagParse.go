package services

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/teamworkery/kakao-order/internal/core/utils"
	"github.com/teamworkery/kakao-order/pkg/config"
)

const (
	ModeOrderService           = "order-service"
	ModeOutboxRelay            = "outbox-relay"
	ModeWebhookDispatcher      = "webhook-dispatcher"
	ModeNotificationSubscriber = "notification-subscriber"
	ModeMigrate                = "migrate"
)

type OrderFlags struct {
	Port int
}

type RelayFlags struct {
	BatchSize    int
	PollInterval time.Duration
}

type DispatcherFlags struct {
	Prefetch    int
	MaxAttempts int
}

type SubscriberFlags struct {
	StoreIDs []string
	Phone    string
	Since    time.Duration
}

type Flags struct {
	Mode       string
	Order      OrderFlags
	Relay      RelayFlags
	Dispatcher DispatcherFlags
	Subscriber SubscriberFlags
}

// RegisterFlags declares the flags of one mode on its command's flag set.
func RegisterFlags(fs *pflag.FlagSet, mode string) {
	switch mode {
	case ModeOrderService:
		fs.Int("port", 0, "The HTTP port for the API.")
	case ModeOutboxRelay:
		fs.Int("batch-size", 0, "Maximum number of outbox events published per poll.")
		fs.Duration("poll-interval", 0, "How often the outbox table is polled.")
	case ModeWebhookDispatcher:
		fs.Int("prefetch", 0, "RabbitMQ prefetch count, limiting how many messages the dispatcher receives at once.")
		fs.Int("max-attempts", 0, "Delivery attempts before an event is dead-lettered.")
	case ModeNotificationSubscriber:
		fs.String("stores", "", "Optional. Comma-separated store ids to follow. If omitted, follows all stores.")
		fs.String("phone", "", "Optional. Only toast orders whose phone number contains this value.")
		fs.Duration("since", 0, "Optional. Only toast orders created within this window.")
	}
}

// FlagParse reads the mode's flags after the command line is parsed. Flags
// the user did not set fall back to the loaded configuration.
func FlagParse(fs *pflag.FlagSet, mode string, cfg *config.Config) (Flags, error) {
	flags := Flags{Mode: mode}
	isSetByUser := fs.Changed("port")

	switch mode {
	case ModeOrderService:
		flags.Order.Port = cfg.Server.Port
		if isSetByUser {
			flags.Order.Port, _ = fs.GetInt("port")
		}
	case ModeOutboxRelay:
		flags.Relay = RelayFlags{BatchSize: cfg.Relay.BatchSize, PollInterval: cfg.Relay.PollInterval}
		if fs.Changed("batch-size") {
			flags.Relay.BatchSize, _ = fs.GetInt("batch-size")
		}
		if fs.Changed("poll-interval") {
			flags.Relay.PollInterval, _ = fs.GetDuration("poll-interval")
		}
	case ModeWebhookDispatcher:
		flags.Dispatcher = DispatcherFlags{Prefetch: cfg.RabbitMQ.Prefetch, MaxAttempts: cfg.Dispatcher.MaxAttempts}
		if fs.Changed("prefetch") {
			flags.Dispatcher.Prefetch, _ = fs.GetInt("prefetch")
		}
		if fs.Changed("max-attempts") {
			flags.Dispatcher.MaxAttempts, _ = fs.GetInt("max-attempts")
		}
	case ModeNotificationSubscriber:
		stores, _ := fs.GetString("stores")
		flags.Subscriber.StoreIDs = utils.GetStringArray(stores)
		flags.Subscriber.Phone, _ = fs.GetString("phone")
		flags.Subscriber.Since, _ = fs.GetDuration("since")
	}

	if err := CheckFlags(flags, isSetByUser); err != nil {
		return Flags{}, err
	}
	return flags, nil
}
