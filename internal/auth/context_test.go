package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/metadata"
)

func TestGetUserID(t *testing.T) {
	assert.Empty(t, GetUserID(context.Background()))

	md := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-user-id", "u-1"))
	assert.Equal(t, "u-1", GetUserID(md))

	// An explicit value wins over metadata
	assert.Equal(t, "u-2", GetUserID(WithUserID(md, "u-2")))
}
