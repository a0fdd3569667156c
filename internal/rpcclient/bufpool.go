package rpcclient

import (
	"io"

	pool "github.com/libp2p/go-buffer-pool"
)

// readAllPooled reads r to completion using a pooled buffer as scratch
// space, to cut down on allocation churn from the many small JSON-RPC
// response bodies a running daemon reads (one `commit` + one-or-more
// `validators` pages per height, per sync run, per client).
func readAllPooled(r io.Reader) ([]byte, error) {
	buf := pool.Get(32 * 1024)
	defer pool.Put(buf)

	var out []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}
