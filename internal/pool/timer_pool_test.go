package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerPool(t *testing.T) {
	t.Run("get and put", func(t *testing.T) {
		t1 := GetTimer(time.Second)
		require.NotNil(t, t1)
		PutTimer(t1)

		t2 := GetTimer(10 * time.Millisecond)
		require.NotNil(t, t2)
		<-t2.C
		PutTimer(t2)
	})

	t.Run("reused active timer fires at the new duration", func(t *testing.T) {
		t1 := GetTimer(100 * time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		PutTimer(t1)

		begin := time.Now()
		t2 := GetTimer(50 * time.Millisecond)
		<-t2.C
		assert.GreaterOrEqual(t, time.Since(begin), 50*time.Millisecond)
		PutTimer(t2)
	})
}

func TestSleep(t *testing.T) {
	begin := time.Now()
	require.NoError(t, Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(begin), 20*time.Millisecond)

	require.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	begin = time.Now()
	err := Sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(begin), time.Second)
}
