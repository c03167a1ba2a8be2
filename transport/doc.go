// Package transport provides the byte transports instruments are reached
// through and the question/answer Session layered on top of them.
//
// A Transport is a byte stream with a read timeout, typically a serial port
// opened by SerialDialer (go.bug.st/serial) or a TCP serial server wrapped by
// NetTransport. Reads that hit the read timeout return (0, nil).
//
// A Session owns one Transport and serialises command cycles on it:
//
//	sess, _ := transport.NewSession("head", transport.NewSerialDialer("/dev/ttyUSB0"),
//		transport.WithBaudRate(9600),
//		transport.WithPollInterval(100*time.Millisecond),
//	)
//	_ = sess.Open(ctx)
//	err := sess.Do(ctx, func(ctx context.Context) error {
//		if err := sess.SendQuestion(ctx, []byte("TRw\r")); err != nil {
//			return err
//		}
//		ans, err := sess.AwaitAnswer(ctx, []byte("\n"), 5*time.Second)
//		...
//	})
//
// Only one cycle runs on a Session at a time. Cycles on different Sessions
// never block each other.
package transport
