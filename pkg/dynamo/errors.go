package dynamo

import (
	"errors"
	"fmt"

	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

var (
	// ErrValidation marks a request DynamoDB rejected as malformed, such as a
	// query on an attribute that is not a key of the table or index.
	ErrValidation = errors.New("dynamodb validation error")
	// ErrConditionFailed marks a conditional write whose condition did not hold.
	ErrConditionFailed = errors.New("dynamodb condition failed")
	// ErrTransient marks any other service failure (network, throttling,
	// internal errors, missing tables).
	ErrTransient = errors.New("dynamodb service error")
)

// classify wraps err with one of the sentinels above.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var ccf *dynamotypes.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("%s: %w: %w", op, ErrConditionFailed, err)
	}

	var tce *dynamotypes.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return fmt.Errorf("%s: %w: %w", op, ErrConditionFailed, err)
			}
		}
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	}

	var ae smithy.APIError
	if errors.As(err, &ae) && ae.ErrorCode() == "ValidationException" {
		return fmt.Errorf("%s: %w: %w", op, ErrValidation, err)
	}

	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// IsValidation reports whether err was classified as ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
