package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/teamworkery/kakao-order/internal/core/utils"
)

func CheckFlags(f Flags, isSetByUser bool) error {
	switch f.Mode {
	case ModeOrderService:
		if err := utils.CheckPort(f.Order.Port, isSetByUser); err != nil {
			return err
		}
	case ModeOutboxRelay:
		if f.Relay.BatchSize <= 0 || f.Relay.BatchSize > 1000 {
			errMessage := fmt.Sprintf("invalid 'batch-size' value: %d", f.Relay.BatchSize)
			return errors.New(errMessage)
		}
		if f.Relay.PollInterval <= 0 {
			errMessage := fmt.Sprintf("invalid 'poll-interval' value: %s", f.Relay.PollInterval)
			return errors.New(errMessage)
		}
	case ModeWebhookDispatcher:
		if f.Dispatcher.Prefetch <= 0 || f.Dispatcher.Prefetch > 10 {
			errMessage := fmt.Sprintf("invalid 'prefetch' value: %d", f.Dispatcher.Prefetch)
			return errors.New(errMessage)
		}
		if f.Dispatcher.MaxAttempts <= 0 || f.Dispatcher.MaxAttempts > 20 {
			errMessage := fmt.Sprintf("invalid 'max-attempts' value: %d", f.Dispatcher.MaxAttempts)
			return errors.New(errMessage)
		}
	case ModeNotificationSubscriber:
		for _, id := range f.Subscriber.StoreIDs {
			if _, err := uuid.Parse(id); err != nil {
				errMessage := fmt.Sprintf("invalid 'stores' value: %s", id)
				return errors.New(errMessage)
			}
		}
	case ModeMigrate:
	default:
		errMessage := fmt.Sprintf("invalid 'mode' value: %s", f.Mode)
		return errors.New(errMessage)
	}
	return nil
}
