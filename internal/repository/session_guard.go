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
)

const (
	skInFlight        = "INFLIGHT#"
	defaultMarkerTTL  = 30 * time.Second
	dynamoTTLInterval = time.Hour // DynamoDB TTL sweeps lag; expiresAt is authoritative
)

// dynamodbAPI is the minimal DynamoDB interface required by SessionGuard.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// SessionGuard keeps one short-lived in-flight marker per session so a session
// can have at most one insight request outstanding across Lambda instances.
type SessionGuard struct {
	api       dynamodbAPI
	tableName string
	markerTTL time.Duration
	now       func() time.Time
}

func NewSessionGuard(api dynamodbAPI, tableName string, markerTTL time.Duration) (*SessionGuard, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if markerTTL <= 0 {
		markerTTL = defaultMarkerTTL
	}
	return &SessionGuard{api: api, tableName: tableName, markerTTL: markerTTL, now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// Acquire writes the marker unless a live one exists and returns the owner
// token that Release must present. A held marker is reported as ("", false, nil);
// markers past expiresAt are taken over.
func (g *SessionGuard) Acquire(ctx context.Context, sessionID string) (string, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", false, errors.New("repository: Acquire: session id is required")
	}
	now := g.now().UTC()
	expiresAt := now.Add(g.markerTTL)
	owner := newOwner()

	_, err := g.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(g.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK":        &types.AttributeValueMemberS{Value: skInFlight},
			"sessionId": &types.AttributeValueMemberS{Value: sessionID},
			"owner":     &types.AttributeValueMemberS{Value: owner},
			"expiresAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt.UnixMilli(), 10)},
			"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt.Add(dynamoTTLInterval).Unix(), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) OR expiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("repository: Acquire: %w", err)
	}
	return owner, true, nil
}

// Release removes the marker if owner still holds it. A marker that is gone or
// was taken over by another request counts as released.
func (g *SessionGuard) Release(ctx context.Context, sessionID, owner string) error {
	if strings.TrimSpace(owner) == "" {
		return errors.New("repository: Release: owner is required")
	}
	_, err := g.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(g.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skInFlight},
		},
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil
		}
		return fmt.Errorf("repository: Release: %w", err)
	}
	return nil
}

func isConditionFailed(err error) bool {
	var failed *types.ConditionalCheckFailedException
	return errors.As(err, &failed)
}

var newOwner = func() string {
	return uuid.NewString()
}
