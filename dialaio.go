package spio

import "github.com/opensp/spio/aio"

// newDialAIO builds an AIO whose callback extracts the Stream a
// StreamDialer.Dial or StreamListener.Accept places in Output(0) and
// hands it, plus any error, to done.
func newDialAIO(pool *aio.Pool, done func(Stream, error)) *aio.AIO {
	var a *aio.AIO
	a = aio.New(pool, func(a *aio.AIO) {
		if err := a.Result(); err != nil {
			done(nil, err)
			return
		}
		s, _ := a.Output(0).(Stream)
		done(s, nil)
	}, nil)
	a.Start(nil, nil)
	return a
}
