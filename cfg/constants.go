// Copyright 2025 Google LLC
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

package cfg

const (
	// Logging-level constants.

	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

const (
	// Readahead clamps, matching f3fs's RECOVERY_MIN/MAX_RA_BLOCKS.

	DefaultMinRaBlocks = 1
	DefaultMaxRaBlocks = 128

	// DefaultMaxRfNodeBlocks is a generous bound on a single pass's node
	// scan budget; real images rarely carry more than a few hundred fsync'd
	// node blocks between checkpoints.
	DefaultMaxRfNodeBlocks = 1 << 20

	// BlocksPerSegment mirrors f3fs's fixed segment size used by the
	// readahead halving rule (spec.md §4.D step 8: on a non-sequential
	// step, halve when the next block address is not the first block of a
	// segment).
	BlocksPerSegment = 512
)
