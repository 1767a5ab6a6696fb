package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	commonErrors "github.com/yoshidumi/attendance-ledger/internal/domain/errors"
	"github.com/yoshidumi/attendance-ledger/internal/domain/reference"
	"github.com/yoshidumi/attendance-ledger/internal/platform/dynamodb/client"
)

// DynamoDBReferenceRepository implements the reference.Store interface.
//
// Key layout: PK <KIND>#<id>, SK META. The counter lives in the
// cumulativeWorkUnits number attribute and is only ever mutated with an
// ADD update expression, so concurrent deltas from independent writers
// always net correctly.
type DynamoDBReferenceRepository struct {
	client client.Client
	table  string
	logger *slog.Logger
}

// NewDynamoDBReferenceRepository creates a new DynamoDBReferenceRepository
func NewDynamoDBReferenceRepository(client client.Client, table string, logger *slog.Logger) *DynamoDBReferenceRepository {
	return &DynamoDBReferenceRepository{
		client: client,
		table:  table,
		logger: logger,
	}
}

type referenceItem struct {
	Kind      string    `dynamodbav:"kind"`
	ID        string    `dynamodbav:"id"`
	Name      string    `dynamodbav:"name,omitempty"`
	CompanyID string    `dynamodbav:"companyId,omitempty"`
	UpdatedAt time.Time `dynamodbav:"updatedAt"`
}

func entityKey(kind reference.Kind, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("%s#%s", kind, id)},
		"SK": &types.AttributeValueMemberS{Value: "META"},
	}
}

func unmarshalEntity(raw map[string]types.AttributeValue) (*reference.Entity, error) {
	var item referenceItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal reference entity", err)
	}
	entity := &reference.Entity{
		Kind:      reference.Kind(item.Kind),
		ID:        item.ID,
		Name:      item.Name,
		CompanyID: item.CompanyID,
		UpdatedAt: item.UpdatedAt,
	}
	// The counter attribute is a DynamoDB number; go through its exact
	// string form rather than a float.
	if attr, ok := raw["cumulativeWorkUnits"].(*types.AttributeValueMemberN); ok {
		value, err := decimal.NewFromString(attr.Value)
		if err != nil {
			return nil, commonErrors.NewInternalError("corrupt cumulativeWorkUnits on reference entity", err)
		}
		entity.CumulativeWorkUnits = value
	}
	return entity, nil
}

// GetByID retrieves one reference entity.
func (r *DynamoDBReferenceRepository) GetByID(ctx context.Context, kind reference.Kind, id string) (*reference.Entity, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       entityKey(kind, id),
	})
	if err != nil {
		return nil, commonErrors.NewStoreError("failed to get reference entity", err)
	}
	if len(result.Item) == 0 {
		return nil, commonErrors.NewNotFoundError(fmt.Sprintf("%s %s not found", kind, id))
	}
	return unmarshalEntity(result.Item)
}

// List returns every entity of one kind.
func (r *DynamoDBReferenceRepository) List(ctx context.Context, kind reference.Kind) ([]reference.Entity, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("kind").Equal(expression.Value(string(kind)))).
		Build()
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to build expression", err)
	}

	var entities []reference.Entity
	var startKey map[string]types.AttributeValue
	for {
		result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(r.table),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, commonErrors.NewStoreError("failed to scan reference entities", err)
		}
		for _, raw := range result.Items {
			entity, err := unmarshalEntity(raw)
			if err != nil {
				return nil, err
			}
			entities = append(entities, *entity)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}
	return entities, nil
}

// ResolveOwningCompany returns the id of the company currently owning
// the team, or "" when the team is unknown or unowned.
func (r *DynamoDBReferenceRepository) ResolveOwningCompany(ctx context.Context, teamID string) (string, error) {
	entity, err := r.GetByID(ctx, reference.KindTeam, teamID)
	if err != nil {
		if errors.Is(err, commonErrors.NewNotFoundError("")) {
			return "", nil
		}
		return "", err
	}
	return entity.CompanyID, nil
}

// IncrementCounter applies a signed delta with DynamoDB's atomic ADD.
// The existence condition keeps an unknown id from materializing a
// phantom entity; that surfaces as NOT_FOUND for the caller to decide.
func (r *DynamoDBReferenceRepository) IncrementCounter(ctx context.Context, kind reference.Kind, id string, delta decimal.Decimal) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 entityKey(kind, id),
		UpdateExpression:    aws.String("ADD #c :d SET #u = :t"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#c": "cumulativeWorkUnits",
			"#u": "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberN{Value: delta.String()},
			":t": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var condCheckErr *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckErr) {
			return commonErrors.NewNotFoundError(fmt.Sprintf("%s %s not found", kind, id))
		}
		return commonErrors.NewStoreError("failed to increment counter", err)
	}
	return nil
}

// SetCounter overwrites the counter with an absolute value. Reserved
// for the recompute maintenance path.
func (r *DynamoDBReferenceRepository) SetCounter(ctx context.Context, kind reference.Kind, id string, value decimal.Decimal) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 entityKey(kind, id),
		UpdateExpression:    aws.String("SET #c = :v, #u = :t"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#c": "cumulativeWorkUnits",
			"#u": "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: value.String()},
			":t": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var condCheckErr *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckErr) {
			return commonErrors.NewNotFoundError(fmt.Sprintf("%s %s not found", kind, id))
		}
		return commonErrors.NewStoreError("failed to set counter", err)
	}
	return nil
}
