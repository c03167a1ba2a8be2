package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/arloliu/go-instrument/fault"
)

func TestNewSessionNilDialer(t *testing.T) {
	_, err := NewSession("x", nil)
	require.ErrorIs(t, err, ErrNilDialer)
}

func TestSessionCloseTwice(t *testing.T) {
	sess, _ := newPipeSession(t)

	require.True(t, sess.IsOpen())
	require.NoError(t, sess.Close())
	require.False(t, sess.IsOpen())
	require.ErrorIs(t, sess.Close(), ErrSessionClosed)
}

func TestSessionOpenFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(nil, errors.New("no such device"))

	sess, err := NewSession("ttyX", dialer)
	require.NoError(t, err)

	err = sess.Open(context.Background())
	require.ErrorIs(t, err, fault.ErrConnection)
	assert.Contains(t, err.Error(), "no such device")
	assert.False(t, sess.IsOpen())
}

func TestSessionReopen(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := NewMockTransport(ctrl)
	second := NewMockTransport(ctrl)
	dialer := NewMockDialer(ctrl)

	gomock.InOrder(
		dialer.EXPECT().Dial(gomock.Any()).Return(first, nil),
		dialer.EXPECT().Dial(gomock.Any()).Return(second, nil),
	)
	first.EXPECT().SetReadTimeout(DefaultPollInterval).Return(nil)
	first.EXPECT().Close().Return(nil)
	second.EXPECT().SetReadTimeout(DefaultPollInterval).Return(nil)
	second.EXPECT().Close().Return(nil)

	sess, err := NewSession("ttyX", dialer)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sess.Open(ctx))
	require.NoError(t, sess.Open(ctx)) // no-op
	require.NoError(t, sess.Reopen(ctx))
	require.True(t, sess.IsOpen())
	require.NoError(t, sess.Close())
}

func TestSessionQuestionAnswer(t *testing.T) {
	sess, remote := newPipeSession(t)
	respond(remote, func(q string) string {
		if q == "TRw\r" {
			return "TRh-1200,3100\n"
		}
		return "TR9\n"
	})

	ctx := context.Background()
	err := sess.Do(ctx, func(ctx context.Context) error {
		require.NoError(t, sess.SendQuestion(ctx, []byte("TRw\r")))

		ans, err := sess.AwaitAnswer(ctx, []byte("\n"), time.Second)
		require.NoError(t, err)
		assert.Equal(t, AnswerMatched, ans.Status)
		assert.Equal(t, "TRh-1200,3100\n", string(ans.Data))

		return nil
	})
	require.NoError(t, err)
	assert.False(t, sess.Dirty())
}

func TestAwaitAnswerKeepsTrailingBytes(t *testing.T) {
	sess, remote := newPipeSession(t, WithFlushPolicy(FlushNone))
	respond(remote, func(string) string { return "A0\nB0\n" })

	ctx := context.Background()
	require.NoError(t, sess.SendQuestion(ctx, []byte("A\r")))

	ans, err := sess.AwaitAnswer(ctx, []byte("\n"), time.Second)
	require.NoError(t, err)
	require.Equal(t, AnswerMatched, ans.Status)

	assert.Equal(t, "A0\n", string(ans.Data))
	assert.Equal(t, 3, sess.StaleLen())

	ans, err = sess.AwaitAnswer(ctx, []byte("\n"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, AnswerMatched, ans.Status)
	assert.Equal(t, "B0\n", string(ans.Data))
	assert.Equal(t, 0, sess.StaleLen())
}

func TestAwaitAnswerTimeout(t *testing.T) {
	sess, _ := newPipeSession(t)

	start := time.Now()
	ans, err := sess.AwaitAnswer(context.Background(), []byte("\n"), 30*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, AnswerTimeout, ans.Status)
	assert.Empty(t, ans.Data)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.True(t, sess.Dirty())
}

func TestAwaitAnswerTimeoutShorterThanPollInterval(t *testing.T) {
	sess, _ := newPipeSession(t, WithPollInterval(400*time.Millisecond))

	maxWait := 50 * time.Millisecond
	ans, err := sess.AwaitAnswer(context.Background(), []byte("\n"), maxWait)
	require.NoError(t, err)
	assert.Equal(t, AnswerTimeout, ans.Status)
	assert.GreaterOrEqual(t, ans.Elapsed, maxWait)
	assert.Less(t, ans.Elapsed, maxWait+100*time.Millisecond)
}

func TestAwaitAnswerRestoresPollInterval(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := NewMockTransport(ctrl)
	dialer := NewMockDialer(ctrl)

	poll := 400 * time.Millisecond
	var timeouts []time.Duration
	current := poll

	dialer.EXPECT().Dial(gomock.Any()).Return(conn, nil)
	conn.EXPECT().SetReadTimeout(gomock.Any()).DoAndReturn(func(d time.Duration) error {
		timeouts = append(timeouts, d)
		current = d
		return nil
	}).AnyTimes()
	conn.EXPECT().Read(gomock.Any()).DoAndReturn(func([]byte) (int, error) {
		time.Sleep(current)
		return 0, nil
	}).AnyTimes()
	conn.EXPECT().Close().Return(nil)

	sess, err := NewSession("ttyX", dialer, WithPollInterval(poll))
	require.NoError(t, err)
	require.NoError(t, sess.Open(context.Background()))
	defer sess.Close()

	ans, err := sess.AwaitAnswer(context.Background(), []byte("\n"), 30*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, AnswerTimeout, ans.Status)
	assert.Less(t, ans.Elapsed, poll)

	require.GreaterOrEqual(t, len(timeouts), 3)
	assert.Equal(t, poll, timeouts[0])
	assert.LessOrEqual(t, timeouts[1], 30*time.Millisecond)
	assert.Equal(t, poll, timeouts[len(timeouts)-1])
}

func TestAwaitAnswerPartial(t *testing.T) {
	sess, remote := newPipeSession(t)
	go func() { _, _ = remote.Write([]byte("TRh-12")) }()

	ans, err := sess.AwaitAnswer(context.Background(), []byte("\n"), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, AnswerPartial, ans.Status)
	assert.Equal(t, "TRh-12", string(ans.Data))
	assert.True(t, sess.Dirty())
}

func TestAwaitAnswerCanceled(t *testing.T) {
	sess, _ := newPipeSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := sess.AwaitAnswer(ctx, []byte("\n"), time.Second)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, sess.Dirty())
}

func TestDirtySessionIsDrained(t *testing.T) {
	sess, remote := newPipeSession(t, WithFlushPolicy(FlushNone))
	ctx := context.Background()

	ans, err := sess.AwaitAnswer(ctx, []byte("\n"), 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, AnswerTimeout, ans.Status)

	done := make(chan string, 1)
	go func() {
		// the late answer of the abandoned cycle, then the real exchange
		_, _ = remote.Write([]byte("LATE\n"))
		q, _ := readQuestion(remote)
		done <- q
		_, _ = remote.Write([]byte("OK\n"))
	}()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, sess.SendQuestion(ctx, []byte("Q\r")))
	ans, err = sess.AwaitAnswer(ctx, []byte("\n"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "OK\n", string(ans.Data))
	assert.Equal(t, "Q\r", <-done)
	assert.False(t, sess.Dirty())
}

func TestSendQuestionWriteError(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := NewMockTransport(ctrl)
	dialer := NewMockDialer(ctrl)

	dialer.EXPECT().Dial(gomock.Any()).Return(conn, nil)
	conn.EXPECT().SetReadTimeout(gomock.Any()).Return(nil).AnyTimes()
	conn.EXPECT().ResetInputBuffer().Return(nil)
	conn.EXPECT().Write([]byte("TRw\r")).Return(0, errors.New("device unplugged"))
	conn.EXPECT().Close().Return(nil)

	sess, err := NewSession("ttyX", dialer, WithFlushPolicy(FlushResetOnly))
	require.NoError(t, err)
	require.NoError(t, sess.Open(context.Background()))
	defer sess.Close()

	err = sess.SendQuestion(context.Background(), []byte("TRw\r"))
	require.ErrorIs(t, err, fault.ErrWrite)
	assert.True(t, sess.Dirty())
}

func TestSendQuestionClosedSession(t *testing.T) {
	sess, err := NewSession("x", newPipeDialer())
	require.NoError(t, err)

	err = sess.SendQuestion(context.Background(), []byte("Q\r"))
	require.ErrorIs(t, err, fault.ErrConnection)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionDoSerializes(t *testing.T) {
	sess, _ := newPipeSession(t)

	var (
		mu     sync.Mutex
		active int
		peak   int
		wg     sync.WaitGroup
	)

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Do(context.Background(), func(context.Context) error {
				mu.Lock()
				active++
				peak = max(peak, active)
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()

				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
}

func TestSessionDoHonoursContext(t *testing.T) {
	sess, _ := newPipeSession(t)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = sess.Do(context.Background(), func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := sess.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
	close(release)
}

func TestIndependentSessionsDoNotBlock(t *testing.T) {
	a, _ := newPipeSession(t)
	b, _ := newPipeSession(t)

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = a.Do(context.Background(), func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, b.Do(ctx, func(context.Context) error { return nil }))
}
