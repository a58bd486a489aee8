package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnaryTimeoutInterceptor(t *testing.T) {
	intercept := UnaryTimeoutInterceptor(time.Second)

	var deadline time.Time
	var ok bool
	handler := func(ctx context.Context, _ any) (any, error) {
		deadline, ok = ctx.Deadline()
		return nil, nil
	}

	_, err := intercept(context.Background(), nil, nil, handler)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	want, _ := ctx.Deadline()
	_, err = intercept(ctx, nil, nil, handler)
	assert.NoError(t, err)
	assert.Equal(t, want, deadline)
}
