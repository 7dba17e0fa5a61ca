package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"atlas-widget/internal/domain"
)

const (
	skPrefixMsg     = "MSG#"
	skMeta          = "META#"
	statusComplete  = "complete"
	defaultTTL      = 30 * 24 * time.Hour
	conditionNewKey = "attribute_not_exists(PK) AND attribute_not_exists(SK)"
)

// dynamodbAPI is the subset of *dynamodb.Client used by Client.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client keeps the assistant's conversation memory in a single DynamoDB
// table. Each completed turn is one MSG# item; the META# item counts turns.
type Client struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

type ClientOption func(*Client)

// WithTTL overrides how long items live before DynamoDB expires them.
func WithTTL(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func withClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

func New(api dynamodbAPI, tableName string, opts ...ClientOption) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	c := &Client{api: api, tableName: tableName, ttl: defaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

func msgSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(time.RFC3339Nano)
}

// GetHistory returns up to limit of the most recent turns, oldest first.
// A limit of zero or less returns every stored turn.
func (c *Client) GetHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// newest first so Limit keeps the most recent context
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, errors.Wrap(err, "repository: GetHistory query")
	}

	msgs := make([]domain.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, errors.Wrap(err, "repository: GetHistory unmarshal")
		}
		msgs = append(msgs, msg)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Meta returns the aggregate state kept in the conversation's META# item.
// A conversation with no saved turns yields a zero-turn meta.
func (c *Client) Meta(ctx context.Context, conversationID string) (domain.ConversationMeta, error) {
	pk := convPK(conversationID)
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ConversationMeta{}, errors.Wrap(err, "repository: Meta get item")
	}
	meta := domain.ConversationMeta{PK: pk, SK: skMeta, ConversationID: conversationID}
	if out == nil || len(out.Item) == 0 {
		return meta, nil
	}
	if _, ok := out.Item["turns"]; ok {
		if meta.Turns, err = intAttr(out.Item, "turns"); err != nil {
			return domain.ConversationMeta{}, errors.Wrap(err, "repository: Meta decode")
		}
	}
	meta.LastActivity, _ = strAttr(out.Item, "lastActivity")
	ttl, _ := intAttr(out.Item, "ttl")
	meta.TTL = int64(ttl)
	return meta, nil
}

// Turns returns the number of completed turns recorded for a conversation.
func (c *Client) Turns(ctx context.Context, conversationID string) (int, error) {
	meta, err := c.Meta(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	return meta.Turns, nil
}

// SaveTurn stores a completed question/answer pair and bumps the turn counter
// in one transaction.
func (c *Client) SaveTurn(ctx context.Context, conversationID, question, answer string) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("repository: SaveTurn: conversation id is required")
	}
	now := c.now().UTC()
	expires := strconv.FormatInt(now.Add(c.ttl).Unix(), 10)
	pk := convPK(conversationID)

	msg := domain.Message{
		PK:             pk,
		SK:             msgSK(now),
		ConversationID: conversationID,
		Text:           question,
		Answer:         answer,
		Status:         statusComplete,
		TTL:            now.Add(c.ttl).Unix(),
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                messageItem(msg),
					ConditionExpression: aws.String(conditionNewKey),
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: pk},
						"SK": &types.AttributeValueMemberS{Value: skMeta},
					},
					UpdateExpression: aws.String("ADD turns :one SET conversationId = :cid, lastActivity = :now, #ttl = :ttl"),
					ExpressionAttributeNames: map[string]string{
						"#ttl": "ttl",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":one": &types.AttributeValueMemberN{Value: "1"},
						":cid": &types.AttributeValueMemberS{Value: conversationID},
						":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
						":ttl": &types.AttributeValueMemberN{Value: expires},
					},
				},
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "repository: SaveTurn")
	}
	return nil
}

func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Message{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Message{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.Message{}, err
	}
	answer, _ := strAttr(item, "answer")
	status, _ := strAttr(item, "status")
	convID, _ := strAttr(item, "conversationId")
	ttl, _ := intAttr(item, "ttl")

	return domain.Message{
		PK:             pk,
		SK:             sk,
		ConversationID: convID,
		Text:           text,
		Answer:         answer,
		Status:         status,
		TTL:            int64(ttl),
	}, nil
}

func messageItem(msg domain.Message) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: msg.PK},
		"SK":             &types.AttributeValueMemberS{Value: msg.SK},
		"conversationId": &types.AttributeValueMemberS{Value: msg.ConversationID},
		"text":           &types.AttributeValueMemberS{Value: msg.Text},
		"answer":         &types.AttributeValueMemberS{Value: msg.Answer},
		"status":         &types.AttributeValueMemberS{Value: msg.Status},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(msg.TTL, 10)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", errors.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, errors.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, errors.Wrapf(err, "repository: parse attribute %q", key)
	}
	return parsed, nil
}
