package types

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Amount is an exact decimal stored as a DynamoDB number. JSON output is a
// plain float.
type Amount struct {
	decimal.Decimal
}

var (
	_ attributevalue.Marshaler   = Amount{}
	_ attributevalue.Unmarshaler = (*Amount)(nil)
)

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

// MarshalDynamoDBAttributeValue stores the exact decimal as a number.
func (a Amount) MarshalDynamoDBAttributeValue() (dynamotypes.AttributeValue, error) {
	return &dynamotypes.AttributeValueMemberN{Value: a.Decimal.String()}, nil
}

// UnmarshalDynamoDBAttributeValue accepts a number or NULL, which reads as zero.
func (a *Amount) UnmarshalDynamoDBAttributeValue(av dynamotypes.AttributeValue) error {
	switch v := av.(type) {
	case *dynamotypes.AttributeValueMemberN:
		d, err := decimal.NewFromString(v.Value)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", v.Value, err)
		}
		a.Decimal = d
	case *dynamotypes.AttributeValueMemberNULL:
		a.Decimal = decimal.Zero
	default:
		return fmt.Errorf("amount: unexpected attribute type %T", av)
	}
	return nil
}

// MarshalJSON writes the amount as a float.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.InexactFloat64())
}

// UnmarshalJSON accepts a number or a quoted number.
func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.Decimal.UnmarshalJSON(b)
}
