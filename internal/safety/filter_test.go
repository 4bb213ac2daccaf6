package safety

import "testing"

func TestFilter_IsAllowed(t *testing.T) {
	tests := []struct {
		name      string
		allowlist []string
		denylist  []string
		vm        string
		want      bool
	}{
		{
			name: "empty lists allow everything",
			vm:   "anything",
			want: true,
		},
		{
			name:      "allowlist exact match",
			allowlist: []string{"web-01"},
			vm:        "web-01",
			want:      true,
		},
		{
			name:      "allowlist non-match denied",
			allowlist: []string{"web-01"},
			vm:        "db-01",
			want:      false,
		},
		{
			name:      "allowlist glob",
			allowlist: []string{"lab-*"},
			vm:        "lab-kali",
			want:      true,
		},
		{
			name:     "denylist exact match",
			denylist: []string{"domain-controller"},
			vm:       "domain-controller",
			want:     false,
		},
		{
			name:     "denylist glob",
			denylist: []string{"prod-*"},
			vm:       "prod-web",
			want:     false,
		},
		{
			name:      "denylist wins over allowlist",
			allowlist: []string{"lab-*"},
			denylist:  []string{"lab-prod"},
			vm:        "lab-prod",
			want:      false,
		},
		{
			name:     "denylist only, non-matching allowed",
			denylist: []string{"prod-*"},
			vm:       "lab-kali",
			want:     true,
		},
		{
			name:      "malformed pattern never matches",
			allowlist: []string{"[invalid"},
			vm:        "anything",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(tt.allowlist, tt.denylist)
			if got := f.IsAllowed(tt.vm); got != tt.want {
				t.Errorf("IsAllowed(%q) = %v, want %v", tt.vm, got, tt.want)
			}
		})
	}
}
