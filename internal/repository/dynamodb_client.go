package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"lifestory-agent/internal/domain"
)

const (
	skPrefixTurn    = "TURN#"
	skPrefixSummary = "SUMMARY#"
	skMeta          = "META#"

	// AccountIndex is the sparse GSI keyed by accountId/createdAt. Only META#
	// items carry accountId; summaries store the owner as ownerId.
	AccountIndex = "byAccount"

	// Fixed width so lexical order of sort keys equals chronological order.
	turnTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table holding conversations, their turns and summaries.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// turnSK returns a sort key that orders turns by creation time; the id breaks ties.
func turnSK(ts time.Time, id string) string {
	return skPrefixTurn + ts.UTC().Format(turnTimeLayout) + "#" + id
}

func summarySK(kind string) string {
	return skPrefixSummary + kind
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// CreateConversation writes the META# record of a new conversation. ID and
// CreatedAt are filled in when empty.
func (c *Client) CreateConversation(ctx context.Context, conv domain.Conversation) (domain.Conversation, error) {
	if strings.TrimSpace(conv.AccountID) == "" {
		return domain.Conversation{}, errors.New("repository: CreateConversation: account id is required")
	}
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = c.now().UTC()
	}
	conv.LastActivity = conv.CreatedAt
	conv.Turns = 0

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                metaItem(conv),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: CreateConversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns the conversation metadata or domain.ErrNotFound.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (domain.Conversation, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            key(convPK(conversationID), skMeta),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: GetConversation get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Conversation{}, fmt.Errorf("repository: GetConversation %q: %w", conversationID, domain.ErrNotFound)
	}
	conv, err := itemToConversation(out.Item)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: GetConversation decode: %w", err)
	}
	return conv, nil
}

// RenameConversation replaces the title of an existing conversation.
func (c *Client) RenameConversation(ctx context.Context, conversationID, title string) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 key(convPK(conversationID), skMeta),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		UpdateExpression:    aws.String("SET title = :title"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":title": &types.AttributeValueMemberS{Value: title},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("repository: RenameConversation %q: %w", conversationID, domain.ErrNotFound)
		}
		return fmt.Errorf("repository: RenameConversation: %w", err)
	}
	return nil
}

// ListConversations returns the account's conversations, oldest first.
func (c *Client) ListConversations(ctx context.Context, accountID string) ([]domain.Conversation, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(AccountIndex),
		KeyConditionExpression: aws.String("accountId = :acct"),
		FilterExpression:       aws.String("SK = :meta"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":acct": &types.AttributeValueMemberS{Value: accountID},
			":meta": &types.AttributeValueMemberS{Value: skMeta},
		},
		ScanIndexForward: aws.Bool(true),
	}
	var convs []domain.Conversation
	err := c.queryAll(ctx, in, func(item map[string]types.AttributeValue) error {
		// Older summary items carrying accountId can still surface here.
		if sk, _ := strAttr(item, "SK"); sk != skMeta {
			return nil
		}
		conv, err := itemToConversation(item)
		if err != nil {
			return err
		}
		convs = append(convs, conv)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListConversations: %w", err)
	}
	return convs, nil
}

// GetHistory returns every turn of a conversation in creation order.
func (c *Client) GetHistory(ctx context.Context, conversationID string) ([]domain.Turn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}
	turns := make([]domain.Turn, 0)
	err := c.queryAll(ctx, in, func(item map[string]types.AttributeValue) error {
		turn, err := itemToTurn(item)
		if err != nil {
			return err
		}
		turn.ConversationID = conversationID
		turns = append(turns, turn)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory: %w", err)
	}
	return turns, nil
}

// queryAll follows LastEvaluatedKey until the query is exhausted.
func (c *Client) queryAll(ctx context.Context, in *dynamodb.QueryInput, fn func(map[string]types.AttributeValue) error) error {
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for _, item := range out.Items {
			if err := fn(item); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// AppendTurn writes the turn and bumps the conversation counters in one
// transaction. A missing conversation is reported as domain.ErrNotFound.
func (c *Client) AppendTurn(ctx context.Context, turn domain.Turn) (domain.Turn, error) {
	if turn.ConversationID == "" {
		return domain.Turn{}, errors.New("repository: AppendTurn: conversation id is required")
	}
	if _, err := domain.ParseRole(string(turn.Role)); err != nil {
		return domain.Turn{}, fmt.Errorf("repository: AppendTurn: %w", err)
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = c.now().UTC()
	}
	pk := convPK(turn.ConversationID)

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                turnItem(turn),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Update: &types.Update{
					TableName:           aws.String(c.tableName),
					Key:                 key(pk, skMeta),
					ConditionExpression: aws.String("attribute_exists(PK)"),
					UpdateExpression:    aws.String("ADD turns :one SET lastActivity = :now"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":one": &types.AttributeValueMemberN{Value: "1"},
						":now": &types.AttributeValueMemberS{Value: turn.CreatedAt.Format(time.RFC3339Nano)},
					},
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && metaConditionFailed(tce) {
			return domain.Turn{}, fmt.Errorf("repository: AppendTurn %q: %w", turn.ConversationID, domain.ErrNotFound)
		}
		return domain.Turn{}, fmt.Errorf("repository: AppendTurn: %w", err)
	}
	return turn, nil
}

func metaConditionFailed(tce *types.TransactionCanceledException) bool {
	if len(tce.CancellationReasons) < 2 {
		return false
	}
	return aws.ToString(tce.CancellationReasons[1].Code) == "ConditionalCheckFailed"
}

// GetSummary returns the summary of the given kind or domain.ErrNotFound.
func (c *Client) GetSummary(ctx context.Context, conversationID, kind string) (domain.Summary, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            key(convPK(conversationID), summarySK(kind)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Summary{}, fmt.Errorf("repository: GetSummary get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Summary{}, fmt.Errorf("repository: GetSummary %q: %w", conversationID, domain.ErrNotFound)
	}
	s, err := itemToSummary(out.Item)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("repository: GetSummary decode: %w", err)
	}
	s.ConversationID = conversationID
	return s, nil
}

// UpsertSummary creates or replaces the (conversation, kind) summary in a
// single UpdateItem. created_at is kept from the first write.
func (c *Client) UpsertSummary(ctx context.Context, s domain.Summary) (domain.Summary, error) {
	if s.ConversationID == "" || s.Kind == "" {
		return domain.Summary{}, errors.New("repository: UpsertSummary: conversation id and kind are required")
	}
	now := c.now().UTC().Format(time.RFC3339Nano)

	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(c.tableName),
		Key:              key(convPK(s.ConversationID), summarySK(s.Kind)),
		UpdateExpression: aws.String("SET #content = :content, #format = :format, ownerId = :acct, kind = :kind, updatedAt = :now, createdAt = if_not_exists(createdAt, :now)"),
		ExpressionAttributeNames: map[string]string{
			"#content": "content",
			"#format":  "format",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":content": &types.AttributeValueMemberS{Value: s.Content},
			":format":  &types.AttributeValueMemberS{Value: string(s.Format)},
			":acct":    &types.AttributeValueMemberS{Value: s.AccountID},
			":kind":    &types.AttributeValueMemberS{Value: s.Kind},
			":now":     &types.AttributeValueMemberS{Value: now},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return domain.Summary{}, fmt.Errorf("repository: UpsertSummary: %w", err)
	}
	if out == nil || len(out.Attributes) == 0 {
		return domain.Summary{}, errors.New("repository: UpsertSummary: no attributes returned")
	}
	saved, err := itemToSummary(out.Attributes)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("repository: UpsertSummary decode: %w", err)
	}
	saved.ConversationID = s.ConversationID
	return saved, nil
}

func metaItem(conv domain.Conversation) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(conv.ID)},
		"SK":             &types.AttributeValueMemberS{Value: skMeta},
		"conversationId": &types.AttributeValueMemberS{Value: conv.ID},
		"accountId":      &types.AttributeValueMemberS{Value: conv.AccountID},
		"title":          &types.AttributeValueMemberS{Value: conv.Title},
		"turns":          &types.AttributeValueMemberN{Value: strconv.Itoa(conv.Turns)},
		"createdAt":      &types.AttributeValueMemberS{Value: conv.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"lastActivity":   &types.AttributeValueMemberS{Value: conv.LastActivity.UTC().Format(time.RFC3339Nano)},
	}
}

func turnItem(turn domain.Turn) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: convPK(turn.ConversationID)},
		"SK":        &types.AttributeValueMemberS{Value: turnSK(turn.CreatedAt, turn.ID)},
		"turnId":    &types.AttributeValueMemberS{Value: turn.ID},
		"role":      &types.AttributeValueMemberS{Value: string(turn.Role)},
		"content":   &types.AttributeValueMemberS{Value: turn.Content},
		"createdAt": &types.AttributeValueMemberS{Value: turn.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
}

func itemToConversation(item map[string]types.AttributeValue) (domain.Conversation, error) {
	id, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.Conversation{}, err
	}
	accountID, err := strAttr(item, "accountId")
	if err != nil {
		return domain.Conversation{}, err
	}
	turns, err := intAttr(item, "turns")
	if err != nil {
		return domain.Conversation{}, err
	}
	createdAt, err := timeAttr(item, "createdAt")
	if err != nil {
		return domain.Conversation{}, err
	}
	title, _ := strAttr(item, "title") // allow empty
	lastActivity, err := timeAttr(item, "lastActivity")
	if err != nil {
		lastActivity = createdAt
	}
	return domain.Conversation{
		ID:           id,
		AccountID:    accountID,
		Title:        title,
		Turns:        turns,
		CreatedAt:    createdAt,
		LastActivity: lastActivity,
	}, nil
}

func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	rawRole, err := strAttr(item, "role")
	if err != nil {
		return domain.Turn{}, err
	}
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return domain.Turn{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Turn{}, err
	}
	createdAt, err := timeAttr(item, "createdAt")
	if err != nil {
		return domain.Turn{}, err
	}
	id, _ := strAttr(item, "turnId")
	return domain.Turn{ID: id, Role: role, Content: content, CreatedAt: createdAt}, nil
}

func itemToSummary(item map[string]types.AttributeValue) (domain.Summary, error) {
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Summary{}, err
	}
	rawFormat, err := strAttr(item, "format")
	if err != nil {
		return domain.Summary{}, err
	}
	format, err := domain.ParseFormat(rawFormat)
	if err != nil {
		return domain.Summary{}, err
	}
	createdAt, err := timeAttr(item, "createdAt")
	if err != nil {
		return domain.Summary{}, err
	}
	updatedAt, err := timeAttr(item, "updatedAt")
	if err != nil {
		return domain.Summary{}, err
	}
	kind, _ := strAttr(item, "kind")
	accountID, err := strAttr(item, "ownerId")
	if err != nil {
		accountID, _ = strAttr(item, "accountId")
	}
	return domain.Summary{
		AccountID: accountID,
		Kind:      kind,
		Format:    format,
		Content:   content,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return ts, nil
}
