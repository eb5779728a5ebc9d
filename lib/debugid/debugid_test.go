// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugid

import "testing"

func TestNormalizeCanonicalForms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "dashed uuid unchanged",
			raw:  "dfb8e43a-f242-3d73-a453-aeb6a777ef75",
			want: "dfb8e43a-f242-3d73-a453-aeb6a777ef75",
		},
		{
			name: "bare hex gains dashes",
			raw:  "dfb8e43af2423d73a453aeb6a777ef75",
			want: "dfb8e43a-f242-3d73-a453-aeb6a777ef75",
		},
		{
			name: "uppercase folds to lowercase",
			raw:  "DFB8E43A-F242-3D73-A453-AEB6A777EF75",
			want: "dfb8e43a-f242-3d73-a453-aeb6a777ef75",
		},
		{
			name: "dashed appendix",
			raw:  "dfb8e43a-f242-3d73-a453-aeb6a777ef75-a1b2c3d4",
			want: "dfb8e43a-f242-3d73-a453-aeb6a777ef75-a1b2c3d4",
		},
		{
			name: "breakpad single digit age",
			raw:  "dfb8e43af2423d73a453aeb6a777ef75a",
			want: "dfb8e43a-f242-3d73-a453-aeb6a777ef75-a",
		},
		{
			name: "appendix leading zeros trimmed",
			raw:  "dfb8e43a-f242-3d73-a453-aeb6a777ef75-0000beef",
			want: "dfb8e43a-f242-3d73-a453-aeb6a777ef75-beef",
		},
		{
			name: "zero appendix omitted",
			raw:  "dfb8e43a-f242-3d73-a453-aeb6a777ef75-00000000",
			want: "dfb8e43a-f242-3d73-a453-aeb6a777ef75",
		},
		{
			name: "surrounding whitespace trimmed",
			raw:  "  dfb8e43af2423d73a453aeb6a777ef75\n",
			want: "dfb8e43a-f242-3d73-a453-aeb6a777ef75",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			id, err := Normalize(test.raw)
			if err != nil {
				t.Fatalf("Normalize(%q): %v", test.raw, err)
			}
			if got := id.String(); got != test.want {
				t.Errorf("Normalize(%q) = %q, want %q", test.raw, got, test.want)
			}
		})
	}
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	malformed := []string{
		"",
		"not-a-debug-id",
		"dfb8e43a",
		"dfb8e43af2423d73a453aeb6a777ef7",          // 31 digits
		"dfb8e43af2423d73a453aeb6a777ef75a1b2c3d4f", // 41 digits
		"zfb8e43af2423d73a453aeb6a777ef75",          // non-hex in uuid
		"dfb8e43af2423d73a453aeb6a777ef75-xyz",      // non-hex appendix
	}

	for _, raw := range malformed {
		if _, err := Normalize(raw); err == nil {
			t.Errorf("Normalize(%q) succeeded, want error", raw)
		}
	}
}

func TestNormalizeEquivalentFormsAreEqual(t *testing.T) {
	forms := []string{
		"dfb8e43a-f242-3d73-a453-aeb6a777ef75-a",
		"dfb8e43af2423d73a453aeb6a777ef75a",
		"DFB8E43AF2423D73A453AEB6A777EF75A",
		"dfb8e43a-f242-3d73-a453-aeb6a777ef75-0a",
	}

	first, err := Normalize(forms[0])
	if err != nil {
		t.Fatalf("Normalize(%q): %v", forms[0], err)
	}
	for _, form := range forms[1:] {
		id, err := Normalize(form)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", form, err)
		}
		if id != first {
			t.Errorf("Normalize(%q) = %v, want %v", form, id, first)
		}
	}
}

func TestAppendix(t *testing.T) {
	id, err := Normalize("dfb8e43a-f242-3d73-a453-aeb6a777ef75-a1b2c3d4")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := id.Appendix(); got != 0xa1b2c3d4 {
		t.Errorf("Appendix() = %#x, want 0xa1b2c3d4", got)
	}
}

func TestNormalizeAll(t *testing.T) {
	raw := []string{
		"dfb8e43a-f242-3d73-a453-aeb6a777ef75",
		"garbage",
		"DFB8E43AF2423D73A453AEB6A777EF75", // duplicate of the first
		"429f6ddc-9b9c-4dcb-99f6-a62bdbd3ad03",
	}

	ids := NormalizeAll(raw)
	if len(ids) != 2 {
		t.Fatalf("NormalizeAll returned %d ids, want 2: %v", len(ids), ids)
	}
	if ids[0].String() != "dfb8e43a-f242-3d73-a453-aeb6a777ef75" {
		t.Errorf("ids[0] = %s, want the first valid identifier", ids[0])
	}
	if ids[1].String() != "429f6ddc-9b9c-4dcb-99f6-a62bdbd3ad03" {
		t.Errorf("ids[1] = %s, want the second valid identifier", ids[1])
	}
}

func TestNormalizeAllEmpty(t *testing.T) {
	if ids := NormalizeAll(nil); len(ids) != 0 {
		t.Errorf("NormalizeAll(nil) = %v, want empty", ids)
	}
	if ids := NormalizeAll([]string{"junk", ""}); len(ids) != 0 {
		t.Errorf("NormalizeAll(all malformed) = %v, want empty", ids)
	}
}
