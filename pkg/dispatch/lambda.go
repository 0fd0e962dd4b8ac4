package dispatch

import (
	"context"
	"encoding/json"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/google/uuid"

	"github.com/tobiasegelund/duckingit/pkg/config"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
)

// payload is the worker invocation payload: "query" (the
// fully-rewritten subquery) and "key" (the output
// object's destination), plus the request id the CompletionBus
// matches the eventual completion event against.
type payload struct {
	RequestID string `json:"request_id"`
	Query     string `json:"query"`
	Key       string `json:"key"`
}

// Lambda dispatches tasks as asynchronous AWS Lambda invocations —
// the production binding. The function itself (the worker) is deployed
// separately; this binding only invokes it and never waits on a reply.
type Lambda struct {
	client   *lambda.Client
	function string
}

// NewLambda builds a Lambda dispatcher targeting cfg.FunctionName.
func NewLambda(ctx context.Context, cfg config.WorkerConfig) (*Lambda, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, lakeerr.Wrap(err, lakeerr.KindConfigError, "loading AWS configuration")
	}
	return &Lambda{client: lambda.NewFromConfig(awsCfg), function: cfg.FunctionName}, nil
}

func (d *Lambda) Dispatch(ctx context.Context, requestID, subquery, outputKey string) error {
	body, err := json.Marshal(payload{RequestID: requestID, Query: subquery, Key: outputKey})
	if err != nil {
		return lakeerr.Wrap(err, lakeerr.KindInternal, "encoding worker payload")
	}

	_, err = d.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   &d.function,
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        body,
	})
	if err != nil {
		return lakeerr.NewDispatchError(err, d.function)
	}
	return nil
}

// Warm invokes count synthetic no-op payloads to pre-provision Lambda
// execution environments, avoiding cold-start latency on the stage's
// real tasks, gated by WorkerConfig's warm_up flag.
func (d *Lambda) Warm(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		// Each warm-up gets its own request id so concurrent Invoke
		// calls never collide on a CompletionBus that happens to echo
		// the payload back (SQS redelivery, local stand-ins).
		body, err := json.Marshal(payload{RequestID: uuid.NewString(), Query: "SELECT 1", Key: ""})
		if err != nil {
			return lakeerr.Wrap(err, lakeerr.KindInternal, "encoding warm-up payload")
		}
		if _, err := d.client.Invoke(ctx, &lambda.InvokeInput{
			FunctionName:   &d.function,
			InvocationType: lambdatypes.InvocationTypeEvent,
			Payload:        body,
		}); err != nil {
			return lakeerr.NewDispatchError(err, d.function)
		}
	}
	return nil
}

// ApplyWorkerConfig implements config.WorkerConfigurable, pushing the
// memory size and timeout out to the deployed function.
func (d *Lambda) ApplyWorkerConfig(ctx context.Context, cfg config.WorkerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	memory := int32(cfg.MemorySize)
	timeout := int32(cfg.Timeout)
	_, err := d.client.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: &d.function,
		MemorySize:   &memory,
		Timeout:      &timeout,
	})
	if err != nil {
		return lakeerr.Wrap(err, lakeerr.KindConfigError, "updating worker function configuration")
	}
	d.function = cfg.FunctionName
	return nil
}
