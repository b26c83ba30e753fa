package fetch

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// remoteBlockSize is the granularity of RemoteFile reads. Zip directories and
// TIFF headers are small, so one block usually serves a whole lookup.
const remoteBlockSize = 256 << 10

// RemoteFile is an io.ReaderAt over a remote file, read with ranged requests
// and cached in fixed size blocks.
type RemoteFile struct {
	ctx    context.Context
	client *Client
	url    string
	size   int64

	mu     sync.Mutex
	blocks map[int64][]byte
}

// Open learns the size of a remote file and returns a reader over it. ctx
// bounds every later read.
func (c *Client) Open(ctx context.Context, url string) (*RemoteFile, error) {
	size, err := c.Size(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}
	return &RemoteFile{
		ctx:    ctx,
		client: c,
		url:    url,
		size:   size,
		blocks: make(map[int64][]byte),
	}, nil
}

// URL returns the remote location.
func (f *RemoteFile) URL() string {
	return f.url
}

// Size returns the length of the remote file.
func (f *RemoteFile) Size() int64 {
	return f.size
}

// ReadAt implements io.ReaderAt.
func (f *RemoteFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("read %s: negative offset %d", f.url, off)
	}
	if off >= f.size {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && off < f.size {
		index := off / remoteBlockSize
		block, err := f.block(index)
		if err != nil {
			return n, err
		}
		copied := copy(p[n:], block[off-index*remoteBlockSize:])
		n += copied
		off += int64(copied)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *RemoteFile) block(index int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b, ok := f.blocks[index]; ok {
		return b, nil
	}

	start := index * remoteBlockSize
	end := min(start+remoteBlockSize, f.size) - 1
	b, _, err := f.client.Get(f.ctx, f.url, start, end)
	if err != nil {
		return nil, err
	}
	f.blocks[index] = b
	return b, nil
}
