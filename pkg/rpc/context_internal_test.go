package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Next(t *testing.T) {
	t.Parallel()

	t.Run("chain stops without Next", func(t *testing.T) {
		steps := make(map[string]bool)
		ctx := &Context{
			handlers: []Handler{
				func(c *Context) { steps["first"] = true },
				func(c *Context) { steps["second"] = true },
			},
		}
		ctx.Next()

		assert.True(t, steps["first"])
		assert.False(t, steps["second"])
		assert.Len(t, ctx.handlers, 1)
	})

	t.Run("chain continues with Next", func(t *testing.T) {
		var order []string
		ctx := &Context{
			handlers: []Handler{
				func(c *Context) {
					order = append(order, "before")
					c.Next()
					order = append(order, "after")
				},
				func(c *Context) { order = append(order, "handler") },
			},
		}
		ctx.Next()

		assert.Equal(t, []string{"before", "handler", "after"}, order)
		assert.Empty(t, ctx.handlers)
	})

	t.Run("empty chain", func(t *testing.T) {
		(&Context{}).Next()
	})
}

func TestContext_Succeed(t *testing.T) {
	t.Parallel()

	ctx := &Context{Request: NewRequest(NewPayload(5, SignMethod.String(), nil))}
	params := Params{"signature": json.RawMessage(`"0x01"`)}
	ctx.Succeed(SignMethod.String(), params)

	assert.Equal(t, uint64(5), ctx.Response.Res.RequestID)
	assert.Equal(t, SignMethod.String(), ctx.Response.Res.Method)
	assert.Equal(t, params, ctx.Response.Res.Params)
	assert.False(t, ctx.Failed())
}

func TestContext_Fail(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("type mismatch")

	tcs := []struct {
		name     string
		err      error
		fallback string
		expected string
	}{
		{"client error", Errorf("bad %s", "input"), "fallback", "bad input"},
		{"wrapped client error", fmt.Errorf("ctx: %w", NewError(sentinel)), "fallback", "type mismatch"},
		{"internal error", errors.New("db down"), "failed to list", "failed to list"},
		{"no error", nil, "invalid parameters", "invalid parameters"},
		{"nothing", nil, "", defaultNodeErrorMessage},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			ctx := &Context{Request: NewRequest(NewPayload(2, SignMethod.String(), nil))}
			ctx.Fail(tc.err, tc.fallback)

			assert.True(t, ctx.Failed())
			assert.Equal(t, uint64(2), ctx.Response.Res.RequestID)
			require.EqualError(t, ctx.Response.Error(), tc.expected)
		})
	}

	assert.ErrorIs(t, NewError(sentinel), sentinel)
}

func TestContext_GetRawResponse(t *testing.T) {
	t.Parallel()

	ctx := &Context{Request: NewRequest(NewPayload(4, PingMethod.String(), nil))}
	raw, err := ctx.GetRawResponse()
	require.NoError(t, err)

	var res Response
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, uint64(4), res.Res.RequestID)
	require.EqualError(t, res.Error(), "internal server error: no response from handler")

	ctx.Succeed(PongMethod.String(), nil)
	raw, err = ctx.GetRawResponse()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, PongMethod.String(), res.Res.Method)
}
