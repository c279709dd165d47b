package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items by PK and evaluates the two condition expressions
// SessionGuard issues, answering like DynamoDB does when they fail.
type fakeDynamo struct {
	putErr     error
	deleteErr  error
	items      map[string]map[string]types.AttributeValue
	lastPut    *dynamodb.PutItemInput
	lastDelete *dynamodb.DeleteItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	pk := in.Item["PK"].(*types.AttributeValueMemberS).Value
	if existing, ok := f.items[pk]; ok && in.ConditionExpression != nil {
		if attrInt(existing["expiresAt"]) >= attrInt(in.ExpressionAttributeValues[":now"]) {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
		}
	}
	f.items[pk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDelete = in
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
	existing, ok := f.items[pk]
	if in.ConditionExpression != nil {
		want := in.ExpressionAttributeValues[":owner"].(*types.AttributeValueMemberS).Value
		if !ok || existing["owner"].(*types.AttributeValueMemberS).Value != want {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
		}
	}
	delete(f.items, pk)
	return &dynamodb.DeleteItemOutput{}, nil
}

func attrInt(av types.AttributeValue) int64 {
	n, _ := strconv.ParseInt(av.(*types.AttributeValueMemberN).Value, 10, 64)
	return n
}

// clock is a settable time source for guard tests.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func mustNewGuard(t *testing.T, db *fakeDynamo) (*SessionGuard, *clock) {
	t.Helper()
	g, err := NewSessionGuard(db, "test-table", 10*time.Second)
	require.NoError(t, err)
	c := &clock{t: time.UnixMilli(1_700_000_000_000)}
	g.now = c.now
	return g, c
}

func sequentialOwners(t *testing.T) {
	t.Helper()
	orig := newOwner
	n := 0
	newOwner = func() string {
		n++
		return fmt.Sprintf("owner-%d", n)
	}
	t.Cleanup(func() { newOwner = orig })
}

func strValue(t *testing.T, av types.AttributeValue) string {
	t.Helper()
	s, ok := av.(*types.AttributeValueMemberS)
	require.True(t, ok)
	return s.Value
}

func numValue(t *testing.T, av types.AttributeValue) string {
	t.Helper()
	n, ok := av.(*types.AttributeValueMemberN)
	require.True(t, ok)
	return n.Value
}

func TestNewSessionGuard_Validates(t *testing.T) {
	_, err := NewSessionGuard(nil, "t", 0)
	require.Error(t, err)

	_, err = NewSessionGuard(newFakeDynamo(), " ", 0)
	require.Error(t, err)

	g, err := NewSessionGuard(newFakeDynamo(), "t", 0)
	require.NoError(t, err)
	require.Equal(t, defaultMarkerTTL, g.markerTTL)
}

func TestAcquire_WritesConditionalMarker(t *testing.T) {
	sequentialOwners(t)
	db := newFakeDynamo()
	g, _ := mustNewGuard(t, db)

	owner, ok, err := g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "owner-1", owner)

	in := db.lastPut
	require.NotNil(t, in)
	require.Equal(t, "test-table", *in.TableName)
	require.Equal(t, "attribute_not_exists(PK) OR expiresAt < :now", *in.ConditionExpression)
	require.Equal(t, "SESSION#abc", strValue(t, in.Item["PK"]))
	require.Equal(t, skInFlight, strValue(t, in.Item["SK"]))
	require.Equal(t, "owner-1", strValue(t, in.Item["owner"]))
	require.Equal(t, "1700000010000", numValue(t, in.Item["expiresAt"]))
	require.Equal(t, "1700000000000", numValue(t, in.ExpressionAttributeValues[":now"]))
	require.Equal(t, fmt.Sprintf("%d", int64(1_700_000_010+3600)), numValue(t, in.Item["ttl"]))
}

func TestAcquire_DefaultOwnerIsUnique(t *testing.T) {
	db := newFakeDynamo()
	g, _ := mustNewGuard(t, db)

	first, ok, err := g.Acquire(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	second, ok, err := g.Acquire(context.Background(), "b")
	require.NoError(t, err)
	require.True(t, ok)

	require.NotEmpty(t, first)
	require.NotEqual(t, first, second)
}

func TestAcquire_HeldMarker(t *testing.T) {
	db := newFakeDynamo()
	g, _ := mustNewGuard(t, db)

	_, ok, err := g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)

	owner, ok, err := g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, owner)
}

func TestAcquire_WrappedHeldMarker(t *testing.T) {
	db := newFakeDynamo()
	db.putErr = fmt.Errorf("operation error: %w", &types.ConditionalCheckFailedException{})
	g, _ := mustNewGuard(t, db)

	_, ok, err := g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAcquire_TakesOverExpiredMarker(t *testing.T) {
	sequentialOwners(t)
	db := newFakeDynamo()
	g, clk := mustNewGuard(t, db)

	_, ok, err := g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)

	// Still live at exactly expiresAt.
	clk.t = clk.t.Add(10 * time.Second)
	_, ok, err = g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.False(t, ok)

	clk.t = clk.t.Add(time.Millisecond)
	owner, ok, err := g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "owner-2", owner)
	require.Equal(t, "owner-2", strValue(t, db.items["SESSION#abc"]["owner"]))
}

func TestAcquire_PutError(t *testing.T) {
	db := newFakeDynamo()
	db.putErr = errors.New("boom")
	g, _ := mustNewGuard(t, db)
	_, _, err := g.Acquire(context.Background(), "abc")
	require.ErrorContains(t, err, "Acquire")
	require.ErrorContains(t, err, "boom")
}

func TestAcquire_EmptySession(t *testing.T) {
	db := newFakeDynamo()
	g, _ := mustNewGuard(t, db)
	_, _, err := g.Acquire(context.Background(), " ")
	require.Error(t, err)
	require.Nil(t, db.lastPut)
}

func TestRelease_DeletesOwnMarker(t *testing.T) {
	db := newFakeDynamo()
	g, _ := mustNewGuard(t, db)

	owner, ok, err := g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, g.Release(context.Background(), "abc", owner))
	require.Equal(t, "SESSION#abc", strValue(t, db.lastDelete.Key["PK"]))
	require.Equal(t, skInFlight, strValue(t, db.lastDelete.Key["SK"]))
	require.Equal(t, "#owner = :owner", *db.lastDelete.ConditionExpression)
	require.Equal(t, "owner", db.lastDelete.ExpressionAttributeNames["#owner"])
	require.Equal(t, owner, strValue(t, db.lastDelete.ExpressionAttributeValues[":owner"]))
	require.Empty(t, db.items)

	_, ok, err = g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRelease_AfterTakeoverKeepsNewMarker(t *testing.T) {
	sequentialOwners(t)
	db := newFakeDynamo()
	g, clk := mustNewGuard(t, db)

	stale, ok, err := g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)

	clk.t = clk.t.Add(11 * time.Second)
	current, ok, err := g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)

	// The slow first request finishes late; its release must not free the session.
	require.NoError(t, g.Release(context.Background(), "abc", stale))
	require.Equal(t, current, strValue(t, db.items["SESSION#abc"]["owner"]))

	_, ok, err = g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, g.Release(context.Background(), "abc", current))
	require.Empty(t, db.items)
}

func TestRelease_NonOwnerIsNoop(t *testing.T) {
	db := newFakeDynamo()
	g, _ := mustNewGuard(t, db)

	_, ok, err := g.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, g.Release(context.Background(), "abc", "someone-else"))
	require.Contains(t, db.items, "SESSION#abc")

	// Releasing a session that has no marker is also fine.
	require.NoError(t, g.Release(context.Background(), "other", "someone-else"))
}

func TestRelease_Errors(t *testing.T) {
	db := newFakeDynamo()
	g, _ := mustNewGuard(t, db)

	require.Error(t, g.Release(context.Background(), "abc", " "))
	require.Nil(t, db.lastDelete)

	db.deleteErr = errors.New("boom")
	require.ErrorContains(t, g.Release(context.Background(), "abc", "owner-1"), "Release")
}

func strPtr(s string) *string { return &s }
