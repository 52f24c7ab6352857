package messaging

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/handlers"
	"example.com/backstage/services/saga/utils"
)

// Command names accepted on the command queue
const (
	CreateSagaInstance       = "CreateSagaInstance"
	UpdateSagaInstance       = "UpdateSagaInstance"
	ChangeSagaInstanceStatus = "ChangeSagaInstanceStatus"
	DeleteSagaInstance       = "DeleteSagaInstance"
	CreateSagaStep           = "CreateSagaStep"
	UpdateSagaStep           = "UpdateSagaStep"
	ChangeSagaStepStatus     = "ChangeSagaStepStatus"
	RetrySagaStep            = "RetrySagaStep"
	DeleteSagaStep           = "DeleteSagaStep"
	CreateSagaLog            = "CreateSagaLog"
	DeleteSagaLog            = "DeleteSagaLog"
)

// ErrMalformed marks messages that cannot be decoded or name no known command
var ErrMalformed = stdErrors.New("malformed message")

// AzureBusMessage is the common message structure
type AzureBusMessage struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error
}

type Processor struct {
	instanceHandler *handlers.SagaInstanceHandler
	stepHandler     *handlers.SagaStepHandler
	logHandler      *handlers.SagaLogHandler
}

func NewProcessor(instanceHandler *handlers.SagaInstanceHandler, stepHandler *handlers.SagaStepHandler, logHandler *handlers.SagaLogHandler) *Processor {
	return &Processor{
		instanceHandler: instanceHandler,
		stepHandler:     stepHandler,
		logHandler:      logHandler,
	}
}

func (p *Processor) ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	return p.Dispatch(ctx, message.Body)
}

// Dispatch decodes a command envelope and runs the matching handler
func (p *Processor) Dispatch(ctx context.Context, body []byte) error {
	var msg AzureBusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	log.Info().Str("eventType", msg.EventType).Msg("Processing message")

	switch msg.EventType {
	case CreateSagaInstance:
		return create(ctx, msg.Data, p.instanceHandler.HandleCreateSagaInstance)
	case UpdateSagaInstance:
		return run(ctx, msg.Data, p.instanceHandler.HandleUpdateSagaInstance)
	case ChangeSagaInstanceStatus:
		return run(ctx, msg.Data, p.instanceHandler.HandleChangeSagaInstanceStatus)
	case DeleteSagaInstance:
		return run(ctx, msg.Data, p.instanceHandler.HandleDeleteSagaInstance)

	case CreateSagaStep:
		return create(ctx, msg.Data, p.stepHandler.HandleCreateSagaStep)
	case UpdateSagaStep:
		return run(ctx, msg.Data, p.stepHandler.HandleUpdateSagaStep)
	case ChangeSagaStepStatus:
		return run(ctx, msg.Data, p.stepHandler.HandleChangeSagaStepStatus)
	case RetrySagaStep:
		return run(ctx, msg.Data, p.stepHandler.HandleRetrySagaStep)
	case DeleteSagaStep:
		return run(ctx, msg.Data, p.stepHandler.HandleDeleteSagaStep)

	case CreateSagaLog:
		return create(ctx, msg.Data, p.logHandler.HandleCreateSagaLog)
	case DeleteSagaLog:
		return run(ctx, msg.Data, p.logHandler.HandleDeleteSagaLog)

	default:
		return fmt.Errorf("%w: unsupported event type %q", ErrMalformed, msg.EventType)
	}
}

func decode[C any](data json.RawMessage) (C, error) {
	var cmd C
	if err := utils.DecodeStrict(data, &cmd); err != nil {
		return cmd, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return cmd, nil
}

func run[C any](ctx context.Context, data json.RawMessage, handle func(context.Context, C) error) error {
	cmd, err := decode[C](data)
	if err != nil {
		return err
	}
	return handle(ctx, cmd)
}

func create[C any](ctx context.Context, data json.RawMessage, handle func(context.Context, C) (string, error)) error {
	cmd, err := decode[C](data)
	if err != nil {
		return err
	}
	id, err := handle(ctx, cmd)
	if err != nil {
		return err
	}
	log.Debug().Str("aggregateID", id).Msg("Created from message")
	return nil
}

// IsPermanent reports whether redelivering the message could never succeed
func IsPermanent(err error) bool {
	if stdErrors.Is(err, ErrMalformed) {
		return true
	}
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindInvalidTransition, domain.KindNotFound:
		return true
	}
	return false
}
