// Copyright 2026 The Rep Authors.
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

package store

import "github.com/rs/zerolog"

// loggerIface is a tiny structured-logging facade over zerolog so call
// sites can pass alternating key/value pairs without building zerolog
// event chains inline.
type loggerIface interface {
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
}

type zlogAdapter struct {
	l zerolog.Logger
}

func wrapLogger(l zerolog.Logger) loggerIface {
	return zlogAdapter{l: l}
}

func (z zlogAdapter) Info(msg string, kv ...interface{}) { z.emit(z.l.Info(), msg, kv) }
func (z zlogAdapter) Warn(msg string, kv ...interface{}) { z.emit(z.l.Warn(), msg, kv) }

func (z zlogAdapter) emit(e *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}
