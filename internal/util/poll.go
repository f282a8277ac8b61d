// Copyright 2026 MountFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by TryUntil when the attempt never succeeded.
var ErrTimeout = errors.New("timed out")

// PollConfig configures polling/wait behavior.
type PollConfig struct {
	Timeout  time.Duration // Total timeout (default: 30s)
	Interval time.Duration // Polling interval (default: 100ms)
}

// DefaultPollConfig returns defaults suited to watching an index build.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Timeout:  30 * time.Second,
		Interval: 100 * time.Millisecond,
	}
}

func (c PollConfig) withDefaults() PollConfig {
	def := DefaultPollConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	return c
}

// PollUntil checks done every interval until it reports true, the timeout
// passes or ctx is cancelled. progress, if non-nil, receives the elapsed
// time after every unsuccessful check.
// Returns nil on success, context.DeadlineExceeded on timeout.
func PollUntil(ctx context.Context, cfg PollConfig, done func() bool, progress func(elapsed time.Duration)) error {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if done() {
		return nil
	}

	start := time.Now()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if done() {
				return nil
			}
			if progress != nil {
				progress(time.Since(start))
			}
		}
	}
}

// TryUntil calls attempt until it succeeds, fails or cfg.Timeout passes.
// attempt reports (true, nil) on success; a non-nil error stops at once and
// is returned. Exhausting the timeout returns ErrTimeout.
func TryUntil(cfg PollConfig, attempt func() (bool, error)) error {
	cfg = cfg.withDefaults()
	deadline := time.Now().Add(cfg.Timeout)
	for {
		ok, err := attempt()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Add(cfg.Interval).Before(deadline) {
			return ErrTimeout
		}
		time.Sleep(cfg.Interval)
	}
}
