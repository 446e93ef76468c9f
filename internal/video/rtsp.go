package video

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
)

// RTSP defaults
const (
	DefaultRTSPTimeout = 10 * time.Second
	SchemeRTSP         = "rtsp"
	SchemeRTSPS        = "rtsps"
)

// ErrNoVideoTrack is returned when an RTSP server publishes no video media
var ErrNoVideoTrack = errors.New("rtsp stream has no video track")

// RTSPInfo summarises an RTSP DESCRIBE response
type RTSPInfo struct {
	URL    string   `json:"url"`
	Medias int      `json:"medias"`
	Video  bool     `json:"video"`
	Codecs []string `json:"codecs"`
}

// ValidateRTSPURL checks the scheme and host of an RTSP address
func ValidateRTSPURL(raw string) (*base.URL, error) {
	u, err := base.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid RTSP URL: %w", err)
	}
	if u.Scheme != SchemeRTSP && u.Scheme != SchemeRTSPS {
		return nil, fmt.Errorf("invalid RTSP URL: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid RTSP URL: missing host")
	}
	return u, nil
}

// DescribeRTSP sends an RTSP DESCRIBE and lists the published media
func DescribeRTSP(ctx context.Context, raw string, timeout time.Duration) (*RTSPInfo, error) {
	u, err := ValidateRTSPURL(raw)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultRTSPTimeout
	}

	c := &gortsplib.Client{
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	if err := c.Start(u.Scheme, u.Host); err != nil {
		return nil, fmt.Errorf("rtsp connect: %w", err)
	}

	type result struct {
		desc *description.Session
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		desc, _, err := c.Describe(u)
		ch <- result{desc: desc, err: err}
	}()

	var res result
	select {
	case res = <-ch:
		c.Close()
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, fmt.Errorf("rtsp describe: %w", res.err)
	}

	info := &RTSPInfo{URL: raw, Medias: len(res.desc.Medias)}
	for _, m := range res.desc.Medias {
		if m.Type == description.MediaTypeVideo {
			info.Video = true
		}
		for _, f := range m.Formats {
			info.Codecs = append(info.Codecs, f.Codec())
		}
	}
	if !info.Video {
		return info, ErrNoVideoTrack
	}
	return info, nil
}
