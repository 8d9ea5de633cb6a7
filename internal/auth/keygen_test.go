package auth

import "testing"

func TestGenerateTokenKey(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateTokenKey()
		if err != nil {
			t.Fatalf("GenerateTokenKey failed: %v", err)
		}
		if len(key) != TokenKeyLen {
			t.Fatalf("key length = %d, want %d", len(key), TokenKeyLen)
		}
		if !ValidateKeyFormat(key) {
			t.Fatalf("generated key %q fails format check", key)
		}
		if seen[key] {
			t.Fatalf("duplicate key generated: %s", key)
		}
		seen[key] = true
	}
}

func TestValidateKeyFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"valid", "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b", true},
		{"uppercase", "9944B09199C62BCF9418AD846DD0E4BBDFC6EE4B", false},
		{"too short", "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4", false},
		{"too long", "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b0", false},
		{"non hex", "zz44b09199c62bcf9418ad846dd0e4bbdfc6ee4b", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateKeyFormat(tt.key); got != tt.want {
				t.Errorf("ValidateKeyFormat(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
