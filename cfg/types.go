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

// LogSeverity is a string validated against the TRACE..OFF scale by the
// mapstructure decode hook in decode_hook.go.
type LogSeverity string

// ResolvedPath behaves like a string but is decoded through path resolution
// (expanding "~" and environment variables) by the decode hook.
type ResolvedPath string
