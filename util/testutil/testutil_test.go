/* Copyright 2026 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package testutil

import (
	"strings"
	"testing"
)

func TestJS(t *testing.T) {
	tests := []struct {
		name string
		arg  interface{}
		want string
	}{
		{
			name: "simple struct",
			arg:  struct{ Tag, Value string }{"35", "A"},
			want: `{"Tag":"35","Value":"A"}`,
		},
		{
			name: "map",
			arg:  map[string]int{"34": 2},
			want: `{"34":2}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JS(tt.arg); got != tt.want {
				t.Fatalf("JS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMsg(t *testing.T) {
	// Classic example from the FIX standard.
	got := Pipes(Msg("8=FIX.4.2|35=0|49=A|56=B|34=12|52=20100304-07:59:30"))
	want := "8=FIX.4.2|9=42|35=0|49=A|56=B|34=12|52=20100304-07:59:30|10="
	if !strings.HasPrefix(got, want) {
		t.Fatalf("got %q", got)
	}
	if len(got) != len(want)+4 {
		t.Fatalf("bad checksum suffix in %q", got)
	}
}
