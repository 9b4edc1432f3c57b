// Copyright 2026 The Steward Authors
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

package health

import (
	"encoding/json"
	"testing"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Ok, "ok"},
		{Warning, "warning"},
		{Critical, "critical"},
		{Unknown, "unknown"},
		{Status(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestStatusJSONRoundTrip(t *testing.T) {
	for _, s := range []Status{Ok, Warning, Critical, Unknown} {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("marshal %v: %v", s, err)
		}

		var back Status
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != s {
			t.Errorf("round trip changed %v to %v", s, back)
		}
	}
}

func TestStatusUnmarshalRejectsUnknownName(t *testing.T) {
	var s Status
	if err := json.Unmarshal([]byte(`"fine"`), &s); err == nil {
		t.Error("expected error for unrecognized status name")
	}
}

func TestSmokeResult(t *testing.T) {
	if !(SmokeResult{Code: 0}).Ok() {
		t.Error("exit 0 should pass")
	}
	if (SmokeResult{Code: 1}).Ok() {
		t.Error("exit 1 should fail")
	}
	if (SmokeResult{Code: -1}).Ok() {
		t.Error("missing exit code should fail")
	}

	if got := (SmokeResult{Code: 0}).String(); got != "passed" {
		t.Errorf("String() = %q, want %q", got, "passed")
	}
	if got := (SmokeResult{Code: 7}).String(); got != "failed (exit 7)" {
		t.Errorf("String() = %q, want %q", got, "failed (exit 7)")
	}
}
