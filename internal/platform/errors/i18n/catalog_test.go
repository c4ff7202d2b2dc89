package i18n

import "testing"

func TestResolveLocale(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", "ko"},
		{"en-US,en;q=0.9", "en-US"},
		{"ko-KR,ko;q=0.9", "ko"},
		{"fr-FR", "ko"},
		{"!!!", "ko"},
	}
	for _, tt := range tests {
		if got := ResolveLocale(tt.header); got != tt.want {
			t.Fatalf("ResolveLocale(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestGetCatalogFallback(t *testing.T) {
	base := GetCatalog(DefaultLocale)
	if base == nil {
		t.Fatal("expected default catalog")
	}
	if GetCatalog("missing-locale") != base {
		t.Fatal("expected fallback to default catalog")
	}
}

func TestFormatRendersMetadata(t *testing.T) {
	cat := GetCatalog("en-US")
	got := cat.Format("RANGE_TOO_LARGE", map[string]string{"max": "365"})
	if got != "At most 365 days can be processed at once" {
		t.Fatalf("format = %q", got)
	}
}

func TestFormatFallbacks(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "hello {{.Name}}",
		"bad":  "{{ if .Name }}",
	})
	if cat.Format("unknown", nil) != "unknown" {
		t.Fatal("expected code fallback when template missing")
	}
	if cat.Format("bad", nil) != "{{ if .Name }}" {
		t.Fatal("expected template fallback on parse error")
	}
}

func TestRegisterCatalog(t *testing.T) {
	custom := NewCatalog("custom", map[Code]string{"code": "ok"})
	RegisterCatalog("custom", custom)
	if got := GetCatalog("custom"); got != custom {
		t.Fatal("expected registered catalog")
	}
}
