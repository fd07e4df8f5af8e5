// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metric

// Counters exposed on /metrics for the DMA-backed file-transfer engine
// (spec.md §8: descriptor-leak and single-response properties are best
// watched in production through counters like these).
var (
	SessionsStarted = Counter(MetricOpts{
		Namespace: "pldm", Subsystem: "fileio", Name: "sessions_started_total",
	}, nil)
	SessionsCompleted = Counter(MetricOpts{
		Namespace: "pldm", Subsystem: "fileio", Name: "sessions_completed_total",
	}, nil)
	SessionsFailed = Counter(MetricOpts{
		Namespace: "pldm", Subsystem: "fileio", Name: "sessions_failed_total",
	}, nil)
	SessionsTimedOut = Counter(MetricOpts{
		Namespace: "pldm", Subsystem: "fileio", Name: "sessions_timed_out_total",
	}, nil)
	ChunksSubmitted = Counter(MetricOpts{
		Namespace: "pldm", Subsystem: "fileio", Name: "chunks_submitted_total",
	}, nil)
	NotifyRetries = Counter(MetricOpts{
		Namespace: "pldm", Subsystem: "hostnotify", Name: "retries_total",
	}, nil)
	NotifyTimeouts = Counter(MetricOpts{
		Namespace: "pldm", Subsystem: "hostnotify", Name: "timeouts_total",
	}, nil)
)
