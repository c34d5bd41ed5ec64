package network

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"time"
)

const downloadChunkSize = 32 * 1024

// Download streams the body of url into dest, creating or truncating it.
//
// 202 Accepted is taken to mean the content is not ready yet: the download
// is retried after PollPause, at most MaxRecursiveCalls times. Other
// non-success statuses are classified as Net does, except that 429 is
// reported at once. Cancellation is checked before each chunk is written;
// a partially written file is left in place.
func (c *Client) Download(ctx context.Context, rawURL, dest string, req *Request) error {
	ctx = withRequestID(ctx)
	ctx, span := c.inst.startSpan(ctx, "network.Download", nethttp.MethodGet, rawURL)
	start := time.Now()

	err := c.download(ctx, rawURL, dest, req)
	c.inst.finish(ctx, span, nethttp.MethodGet, start, nil, err)
	if err != nil {
		c.logger.Info().Err(err).Str("url", rawURL).Str("dest", dest).Msg("download failed")
		return err
	}
	c.logger.Debug().Str("url", rawURL).Str("dest", dest).Dur("elapsed", time.Since(start)).Msg("download complete")
	return nil
}

// TryDownload is Download reporting only whether it succeeded.
func (c *Client) TryDownload(ctx context.Context, rawURL, dest string, req *Request) bool {
	return c.Download(ctx, rawURL, dest, req) == nil
}

func (c *Client) download(ctx context.Context, rawURL, dest string, req *Request) error {
	for depth := 0; ; depth++ {
		resp, body, err := c.timedRequest(ctx, nethttp.MethodGet, rawURL, req, true)
		if err != nil {
			return c.classifyError(ctx, rawURL, err)
		}

		switch {
		case resp.StatusCode == nethttp.StatusAccepted:
			closeQuietly(body)
			if depth >= c.config.MaxRecursiveCalls {
				return NewError(KindServiceFailure, addURL("Content still not ready after polling", rawURL), nil)
			}
			c.logger.Debug().Str("url", rawURL).Int("poll", depth+1).Msg("content not ready, polling")
			if err := c.pause(ctx, c.config.PollPause, pausePoll, rawURL); err != nil {
				return err
			}

		case resp.StatusCode >= 200 && resp.StatusCode < 400:
			return c.writeBody(ctx, rawURL, dest, body)

		default:
			closeQuietly(body)
			return statusError(resp, rawURL, false)
		}
	}
}

func (c *Client) writeBody(ctx context.Context, rawURL, dest string, body io.ReadCloser) (err error) {
	defer closeQuietly(body)

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dest, cerr)
		}
	}()

	buf := make([]byte, downloadChunkSize)
	for {
		n, rerr := body.Read(buf)
		if c.interrupted(ctx) {
			return c.interruptedError(ctx, rawURL)
		}
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to write %s: %w", dest, werr)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return c.classifyError(ctx, rawURL, rerr)
		}
	}
}
