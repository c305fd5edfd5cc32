package txm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAfterCommit_RunsImmediatelyWithoutTx(t *testing.T) {
	ran := false
	AfterCommit(context.Background(), func() { ran = true })
	assert.True(t, ran)
}

func TestAfterCommit_DeferredUntilCommitted(t *testing.T) {
	scope := NewScope(nil)
	ctx := WithScope(context.Background(), scope)

	var order []string
	AfterCommit(ctx, func() { order = append(order, "first") })
	AfterCommit(ctx, func() { order = append(order, "second") })

	assert.True(t, InTx(ctx))
	assert.Empty(t, order)

	scope.Committed()
	assert.Equal(t, []string{"first", "second"}, order)

	// hooks run once
	scope.Committed()
	assert.Len(t, order, 2)
}
