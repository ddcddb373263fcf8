// Copyright 2024 Google LLC
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

package common

// Component names used as the "component" field of structured recovery
// notices and as metric labels.
const (
	ComponentFilename   = "filename_reconstructor"
	ComponentInode      = "inode_replayer"
	ComponentQuota      = "quota_replayer"
	ComponentScanner    = "fsync_chain_scanner"
	ComponentReclaimer  = "prev_owner_reclaimer"
	ComponentDataReplay = "data_index_replayer"
	ComponentDentry     = "directory_replayer"
	ComponentPass       = "pass_orchestrator"
)
