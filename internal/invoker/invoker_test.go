package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapRegistry is the in-process registry tests substitute for a live page.
type mapRegistry map[string]ActionFunc

func (m mapRegistry) Resolve(name string) (ActionFunc, bool) {
	fn, ok := m[name]
	return fn, ok
}

func newTestInvoker() *Invoker {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(logger)
}

func TestInvoker_Success(t *testing.T) {
	registry := mapRegistry{
		"add_todo": func(ctx context.Context, args map[string]interface{}) (Result, error) {
			return Result{
				OK: true,
				Fields: map[string]interface{}{
					"id":        "t1",
					"title":     args["title"],
					"completed": false,
				},
			}, nil
		},
	}

	result := newTestInvoker().Invoke(context.Background(), registry, "add_todo", map[string]interface{}{"title": "Buy milk"})

	assert.True(t, result.OK)
	assert.Equal(t, "Buy milk", result.Fields["title"])
	assert.Equal(t, "t1", result.Fields["id"])
}

func TestInvoker_NilRegistry(t *testing.T) {
	result := newTestInvoker().Invoke(context.Background(), nil, "add_todo", nil)

	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "registry")
}

func TestInvoker_UnknownActionMentionsName(t *testing.T) {
	result := newTestInvoker().Invoke(context.Background(), mapRegistry{}, "delete_everything", nil)

	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "delete_everything")
}

func TestInvoker_ErrorConvertedToPayloadFailure(t *testing.T) {
	registry := mapRegistry{
		"boom": func(ctx context.Context, args map[string]interface{}) (Result, error) {
			return Result{}, errors.New("page went away")
		},
	}

	result := newTestInvoker().Invoke(context.Background(), registry, "boom", nil)

	assert.False(t, result.OK)
	assert.Equal(t, "page went away", result.Error)
}

func TestInvoker_PanicConvertedToPayloadFailure(t *testing.T) {
	registry := mapRegistry{
		"boom": func(ctx context.Context, args map[string]interface{}) (Result, error) {
			panic("unexpected state")
		},
	}

	result := newTestInvoker().Invoke(context.Background(), registry, "boom", nil)

	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "unexpected state")
}

func TestInvoker_NilArgsBecomeEmptyObject(t *testing.T) {
	registry := mapRegistry{
		"check": func(ctx context.Context, args map[string]interface{}) (Result, error) {
			require.NotNil(t, args)
			return Result{OK: true}, nil
		},
	}

	result := newTestInvoker().Invoke(context.Background(), registry, "check", nil)
	assert.True(t, result.OK)
}

func TestResult_MarshalFlat(t *testing.T) {
	result := Result{
		OK:     true,
		Fields: map[string]interface{}{"id": "t1", "completed": false},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["ok"])
	assert.Equal(t, "t1", decoded["id"])
	assert.Equal(t, false, decoded["completed"])
	assert.NotContains(t, decoded, "error")
}

func TestResult_MarshalFailure(t *testing.T) {
	data, err := json.Marshal(Failure("unknown action: %s", "nope"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["ok"])
	assert.Equal(t, "unknown action: nope", decoded["error"])
}

func TestResult_RoundTrip(t *testing.T) {
	original := Result{
		OK:     true,
		Fields: map[string]interface{}{"title": "Buy milk"},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.OK)
	assert.Empty(t, decoded.Error)
	assert.Equal(t, "Buy milk", decoded.Fields["title"])
}
