package lambda

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/controller/event"
	"github.com/m-mizutani/playpack/pkg/domain/interfaces"
	"github.com/m-mizutani/playpack/pkg/utils/errutil"
)

// Handler receives SNS events from the Lambda runtime
type Handler struct {
	processor *event.Processor
}

// New creates a Lambda handler
func New(buildUC interfaces.BuildUseCase) *Handler {
	return &Handler{
		processor: event.NewProcessor(buildUC),
	}
}

// Handle builds every push carried by the SNS event. A returned error fails
// the invocation and leaves redelivery to the platform.
func (h *Handler) Handle(ctx context.Context, snsEvent events.SNSEvent) error {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		ctx = ctxlog.With(ctx, ctxlog.From(ctx).With("aws_request_id", lc.AwsRequestID))
	}
	ctxlog.From(ctx).Debug("Received SNS event", "records", len(snsEvent.Records))

	pushes, err := event.FromSNSEvent(snsEvent)
	if err != nil {
		errutil.Handle(ctx, "Invalid SNS event", err)
		return err
	}

	if _, err := h.processor.ProcessAll(ctx, pushes); err != nil {
		err = goerr.Wrap(err, "invocation failed")
		errutil.Handle(ctx, "Build failed", err)
		return err
	}

	return nil
}

// Start hands control to the Lambda runtime. It returns only if the runtime
// loop exits.
func (h *Handler) Start(ctx context.Context) {
	awslambda.StartWithOptions(h.Handle, awslambda.WithContext(ctx))
}
