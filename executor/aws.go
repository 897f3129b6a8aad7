package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// SFNClient captures the subset of the Step Functions client used by the
// AWS executor.
type SFNClient interface {
	StartSyncExecution(ctx context.Context, params *sfn.StartSyncExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartSyncExecutionOutput, error)
}

// AWS starts synchronous executions against AWS Step Functions. Only
// express state machines support synchronous starts; standard machines are
// rejected by the service.
type AWS struct {
	client SFNClient
}

// NewAWS loads the default AWS configuration and returns an executor backed
// by a real Step Functions client.
func NewAWS(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (*AWS, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &AWS{client: sfn.NewFromConfig(cfg)}, nil
}

// NewAWSFromClient wraps an existing client. Useful for injecting stubs or
// pre-configured clients.
func NewAWSFromClient(client SFNClient) *AWS {
	return &AWS{client: client}
}

// StartSyncExecution invokes the state machine and translates the SDK
// response into the shared result envelope. Platform errors carrying an
// HTTP response surface as *StatusCodeError so the response classifier can
// match them against selection patterns.
func (a *AWS) StartSyncExecution(ctx context.Context, in Input) (*Result, error) {
	params := &sfn.StartSyncExecutionInput{
		StateMachineArn: aws.String(in.StateMachineARN),
		Input:           aws.String(in.Input),
	}
	if in.Name != "" {
		params.Name = aws.String(in.Name)
	}

	out, err := a.client.StartSyncExecution(ctx, params)
	if err != nil {
		return nil, classifyAWSError(err)
	}

	return &Result{
		ExecutionARN: aws.ToString(out.ExecutionArn),
		Status:       Status(out.Status),
		Output:       aws.ToString(out.Output),
		Error:        aws.ToString(out.Error),
		Cause:        aws.ToString(out.Cause),
	}, nil
}

func classifyAWSError(err error) error {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		message := err.Error()
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			message = apiErr.ErrorMessage()
			if message == "" {
				message = apiErr.ErrorCode()
			}
		}
		return &StatusCodeError{Code: respErr.HTTPStatusCode(), Message: message}
	}
	return fmt.Errorf("start sync execution: %w", err)
}
