package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/config"
)

const receiveBatchSize = 10

type AzureClient struct {
	client *azservicebus.Client
}

func NewAzureClient(cfg config.AzureConfig) (*AzureClient, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, err
	}

	return &AzureClient{client: client}, nil
}

// NewSender opens a sender on queueName
func (a *AzureClient) NewSender(queueName string) (*azservicebus.Sender, error) {
	return a.client.NewSender(queueName, nil)
}

// StartConsumers accepts sessions on queueName until ctx is done and hands
// each one to its own goroutine
func (a *AzureClient) StartConsumers(ctx context.Context, queueName string, processor MessageProcessor) error {
	log.Info().Msgf("Starting consumers for queue %s", queueName)

	for {
		sessionReceiver, err := a.client.AcceptNextSessionForQueue(ctx, queueName, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var sbErr *azservicebus.Error
			if errors.As(err, &sbErr) && sbErr.Code == azservicebus.CodeTimeout {
				log.Debug().Msg("No session available, waiting...")
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(2 * time.Second):
				}
				continue
			}
			return err
		}

		log.Info().Msgf("Session '%s' received", sessionReceiver.SessionID())

		go a.handleSession(ctx, sessionReceiver, processor)
	}
}

func (a *AzureClient) handleSession(ctx context.Context, receiver *azservicebus.SessionReceiver, processor MessageProcessor) {
	defer func() {
		log.Info().Msgf("Closing session '%s'", receiver.SessionID())
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Msgf("Error closing session '%s'", receiver.SessionID())
		}
	}()

	for {
		messages, err := receiver.ReceiveMessages(ctx, receiveBatchSize, nil)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msgf("Error receiving messages from session '%s'", receiver.SessionID())
			}
			return
		}

		if len(messages) == 0 {
			return
		}

		log.Debug().Msgf("Received %d messages from session '%s'", len(messages), receiver.SessionID())

		for _, message := range messages {
			settle(ctx, receiver, message, processor.ProcessMessage(ctx, message))
		}
	}
}

// settle completes handled messages, dead-letters ones that can never
// succeed and abandons the rest so they are redelivered
func settle(ctx context.Context, receiver *azservicebus.SessionReceiver, message *azservicebus.ReceivedMessage, err error) {
	if err == nil {
		if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
			log.Error().Err(err).Msgf("(CompleteMessage) err: %v", err)
		}
		return
	}

	if IsPermanent(err) {
		log.Warn().Err(err).Str("messageID", message.MessageID).Msg("Dead-lettering message")
		reason := "rejected"
		description := err.Error()
		if err := receiver.DeadLetterMessage(ctx, message, &azservicebus.DeadLetterOptions{
			Reason:           &reason,
			ErrorDescription: &description,
		}); err != nil {
			log.Error().Err(err).Msgf("(DeadLetterMessage) err: %v", err)
		}
		return
	}

	log.Error().Err(err).Msgf("Error processing message '%s'", message.MessageID)
	if err := receiver.AbandonMessage(ctx, message, nil); err != nil {
		log.Error().Err(err).Msgf("(AbandonMessage) err: %v", err)
	}
}

func (a *AzureClient) Close(ctx context.Context) error {
	return a.client.Close(ctx)
}
