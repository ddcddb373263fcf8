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

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"
)

func resolvePath(s string) (string, error) {
	if strings.HasPrefix(s, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		s = filepath.Join(home, strings.TrimPrefix(s, "~"))
	}
	return os.ExpandEnv(s), nil
}

func hookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)
		switch t {
		case reflect.TypeOf(LogSeverity("")):
			level := strings.ToUpper(s)
			if !slices.Contains([]string{TRACE, DEBUG, INFO, WARNING, ERROR, OFF}, level) {
				return nil, fmt.Errorf("invalid logseverity: %s", s)
			}
			return LogSeverity(level), nil
		case reflect.TypeOf(ResolvedPath("")):
			resolved, err := resolvePath(s)
			if err != nil {
				return nil, err
			}
			return ResolvedPath(resolved), nil
		default:
			return data, nil
		}
	}
}

// DecodeHook composes the text-unmarshaller, enum-validating, duration, and
// comma-split hooks the way the teacher's cfg package composes its own, so
// that viper.Unmarshal produces a validated Config in one pass.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		hookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
