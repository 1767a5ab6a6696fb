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
	ulid "github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	commonErrors "github.com/yoshidumi/attendance-ledger/internal/domain/errors"
	"github.com/yoshidumi/attendance-ledger/internal/domain/report"
	"github.com/yoshidumi/attendance-ledger/internal/platform/dynamodb/client"
)

// maxTransactItems is DynamoDB's per-transaction operation ceiling.
const maxTransactItems = 100

// DynamoDBReportRepository implements the report.Repository interface.
//
// Key layout:
//
//	PK     DATE#<date>      SK     REPORT#<id>
//	GSI1PK REPORT#<id>      GSI1SK REPORT        (lookup by id)
//	GSI2PK REPORT           GSI2SK DATE#<date>#<id>  (date-range queries)
type DynamoDBReportRepository struct {
	client    client.Client
	table     string
	chunkSize int
	logger    *slog.Logger
}

// NewDynamoDBReportRepository creates a new DynamoDBReportRepository.
// chunkSize is clamped to the DynamoDB transaction ceiling.
func NewDynamoDBReportRepository(client client.Client, table string, chunkSize int, logger *slog.Logger) *DynamoDBReportRepository {
	if chunkSize < 1 || chunkSize > maxTransactItems {
		chunkSize = maxTransactItems
	}
	return &DynamoDBReportRepository{
		client:    client,
		table:     table,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

type workerEntryItem struct {
	WorkerID  string `dynamodbav:"workerId"`
	WorkUnits string `dynamodbav:"workUnits"`
	UnitRate  string `dynamodbav:"unitRate"`
	RoleTag   string `dynamodbav:"roleTag,omitempty"`
	Note      string `dynamodbav:"note,omitempty"`
}

type dailyReportItem struct {
	ID             string            `dynamodbav:"id"`
	Date           string            `dynamodbav:"date"`
	TeamID         string            `dynamodbav:"teamId,omitempty"`
	SiteID         string            `dynamodbav:"siteId"`
	WorkerEntries  []workerEntryItem `dynamodbav:"workerEntries"`
	TotalWorkUnits string            `dynamodbav:"totalWorkUnits"`
	TotalAmount    string            `dynamodbav:"totalAmount"`
	CreatedAt      time.Time         `dynamodbav:"createdAt"`
	UpdatedAt      time.Time         `dynamodbav:"updatedAt"`
}

func toItem(r *report.DailyReport) dailyReportItem {
	item := dailyReportItem{
		ID:             r.ID,
		Date:           r.Date,
		TeamID:         r.TeamID,
		SiteID:         r.SiteID,
		WorkerEntries:  make([]workerEntryItem, 0, len(r.WorkerEntries)),
		TotalWorkUnits: r.TotalWorkUnits.String(),
		TotalAmount:    r.TotalAmount.String(),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	for _, e := range r.WorkerEntries {
		item.WorkerEntries = append(item.WorkerEntries, workerEntryItem{
			WorkerID:  e.WorkerID,
			WorkUnits: e.WorkUnits.String(),
			UnitRate:  e.UnitRate.String(),
			RoleTag:   e.RoleTag,
			Note:      e.Note,
		})
	}
	return item
}

func fromItem(item dailyReportItem) (*report.DailyReport, error) {
	totalUnits, err := decimal.NewFromString(item.TotalWorkUnits)
	if err != nil {
		return nil, commonErrors.NewInternalError("corrupt totalWorkUnits on stored report", err)
	}
	totalAmount, err := decimal.NewFromString(item.TotalAmount)
	if err != nil {
		return nil, commonErrors.NewInternalError("corrupt totalAmount on stored report", err)
	}
	r := &report.DailyReport{
		ID:             item.ID,
		Date:           item.Date,
		TeamID:         item.TeamID,
		SiteID:         item.SiteID,
		WorkerEntries:  make([]report.WorkerEntry, 0, len(item.WorkerEntries)),
		TotalWorkUnits: totalUnits,
		TotalAmount:    totalAmount,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
	for _, e := range item.WorkerEntries {
		units, err := decimal.NewFromString(e.WorkUnits)
		if err != nil {
			return nil, commonErrors.NewInternalError("corrupt workUnits on stored report", err)
		}
		rate, err := decimal.NewFromString(e.UnitRate)
		if err != nil {
			return nil, commonErrors.NewInternalError("corrupt unitRate on stored report", err)
		}
		r.WorkerEntries = append(r.WorkerEntries, report.WorkerEntry{
			WorkerID:  e.WorkerID,
			WorkUnits: units,
			UnitRate:  rate,
			RoleTag:   e.RoleTag,
			Note:      e.Note,
		})
	}
	return r, nil
}

func (r *DynamoDBReportRepository) marshalReport(dr *report.DailyReport) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(toItem(dr))
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to marshal report", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: fmt.Sprintf("DATE#%s", dr.Date)}
	item["SK"] = &types.AttributeValueMemberS{Value: fmt.Sprintf("REPORT#%s", dr.ID)}
	item["GSI1PK"] = &types.AttributeValueMemberS{Value: fmt.Sprintf("REPORT#%s", dr.ID)}
	item["GSI1SK"] = &types.AttributeValueMemberS{Value: "REPORT"}
	item["GSI2PK"] = &types.AttributeValueMemberS{Value: "REPORT"}
	item["GSI2SK"] = &types.AttributeValueMemberS{Value: fmt.Sprintf("DATE#%s#%s", dr.Date, dr.ID)}
	item["Type"] = &types.AttributeValueMemberS{Value: "daily_report"}
	return item, nil
}

// GetByID retrieves a report by id via GSI1.
func (r *DynamoDBReportRepository) GetByID(ctx context.Context, id string) (*report.DailyReport, error) {
	keyCondition := expression.Key("GSI1PK").Equal(expression.Value(fmt.Sprintf("REPORT#%s", id))).
		And(expression.Key("GSI1SK").Equal(expression.Value("REPORT")))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).Build()
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to build expression", err)
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String("GSI1"),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, commonErrors.NewStoreError("failed to query report", err)
	}
	if len(result.Items) == 0 {
		return nil, commonErrors.NewNotFoundError("report not found")
	}

	var item dailyReportItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal report", err)
	}
	return fromItem(item)
}

// Query returns every report matching the filter, following pagination
// to exhaustion: overwrite correctness depends on seeing the whole day.
func (r *DynamoDBReportRepository) Query(ctx context.Context, f report.Filter) ([]report.DailyReport, error) {
	builder := expression.NewBuilder()

	var keyCondition expression.KeyConditionBuilder
	index := ""
	if f.Date != "" {
		keyCondition = expression.Key("PK").Equal(expression.Value(fmt.Sprintf("DATE#%s", f.Date))).
			And(expression.Key("SK").BeginsWith("REPORT#"))
	} else {
		index = "GSI2"
		keyCondition = expression.Key("GSI2PK").Equal(expression.Value("REPORT"))
		switch {
		case f.DateFrom != "" && f.DateTo != "":
			keyCondition = keyCondition.And(expression.Key("GSI2SK").Between(
				expression.Value(fmt.Sprintf("DATE#%s", f.DateFrom)),
				expression.Value(fmt.Sprintf("DATE#%s￿", f.DateTo)),
			))
		case f.DateFrom != "":
			keyCondition = keyCondition.And(expression.Key("GSI2SK").GreaterThanEqual(
				expression.Value(fmt.Sprintf("DATE#%s", f.DateFrom)),
			))
		case f.DateTo != "":
			keyCondition = keyCondition.And(expression.Key("GSI2SK").LessThanEqual(
				expression.Value(fmt.Sprintf("DATE#%s￿", f.DateTo)),
			))
		}
	}
	builder = builder.WithKeyCondition(keyCondition)

	if len(f.TeamIDIn) > 0 {
		operands := make([]expression.OperandBuilder, 0, len(f.TeamIDIn))
		for _, teamID := range f.TeamIDIn {
			operands = append(operands, expression.Value(teamID))
		}
		builder = builder.WithFilter(expression.Name("teamId").In(operands[0], operands[1:]...))
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to build expression", err)
	}

	var reports []report.DailyReport
	var startKey map[string]types.AttributeValue
	for {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(r.table),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		}
		if index != "" {
			input.IndexName = aws.String(index)
		}

		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, commonErrors.NewStoreError("failed to query reports", err)
		}
		for _, raw := range result.Items {
			var item dailyReportItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, commonErrors.NewInternalError("failed to unmarshal report", err)
			}
			dr, err := fromItem(item)
			if err != nil {
				return nil, err
			}
			reports = append(reports, *dr)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}
	return reports, nil
}

// InsertMany persists new reports in chunks and returns their assigned ids.
func (r *DynamoDBReportRepository) InsertMany(ctx context.Context, reports []*report.DailyReport) ([]string, error) {
	muts := make([]report.Mutation, 0, len(reports))
	for _, dr := range reports {
		muts = append(muts, report.Mutation{Put: dr})
	}
	if err := r.ApplyMutations(ctx, muts); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(reports))
	for _, dr := range reports {
		ids = append(ids, dr.ID)
	}
	return ids, nil
}

// UpdateByID replaces an existing report in full.
func (r *DynamoDBReportRepository) UpdateByID(ctx context.Context, dr *report.DailyReport) error {
	if dr.ID == "" {
		return commonErrors.NewValidationError("report id is required for update")
	}
	item, err := r.marshalReport(dr)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var condCheckErr *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckErr) {
			return commonErrors.NewNotFoundError("report not found")
		}
		return commonErrors.NewStoreError("failed to update report", err)
	}
	return nil
}

// ApplyMutations executes puts and deletes in size-bounded atomic
// chunks. Chunks committed before a failure stay committed; the error
// names the failing chunk so the caller can re-query and recover.
func (r *DynamoDBReportRepository) ApplyMutations(ctx context.Context, muts []report.Mutation) error {
	items := make([]types.TransactWriteItem, 0, len(muts))
	for i := range muts {
		m := &muts[i]
		switch {
		case m.Put != nil:
			if m.Put.ID == "" {
				m.Put.ID = ulid.Make().String()
			}
			item, err := r.marshalReport(m.Put)
			if err != nil {
				return err
			}
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{TableName: aws.String(r.table), Item: item},
			})
		case m.Delete != nil:
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(r.table),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("DATE#%s", m.Delete.Date)},
						"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("REPORT#%s", m.Delete.ID)},
					},
				},
			})
		}
	}

	for chunkIndex := 0; len(items) > 0; chunkIndex++ {
		n := r.chunkSize
		if n > len(items) {
			n = len(items)
		}
		chunk := items[:n]
		items = items[n:]

		_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: chunk,
		})
		if err != nil {
			return &report.ChunkError{
				Index: chunkIndex,
				Err:   commonErrors.NewStoreError("ledger chunk write failed", err),
			}
		}
		r.logger.Debug("ledger chunk committed", "chunk", chunkIndex, "ops", len(chunk))
	}
	return nil
}
