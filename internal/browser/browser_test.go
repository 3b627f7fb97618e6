package browser

import (
	"context"
	"testing"
)

func TestModeFor(t *testing.T) {
	tests := []struct {
		browserType string
		want        LoadMode
	}{
		{"mimic", LoadEager},
		{"Mimic", LoadEager},
		{"stealthfox", LoadNormal},
		{"", LoadNormal},
	}
	for _, tt := range tests {
		if got := ModeFor(tt.browserType); got != tt.want {
			t.Errorf("ModeFor(%q) = %s, want %s", tt.browserType, got, tt.want)
		}
	}
}

type keyPage struct {
	Page
	sel  string
	keys string
}

func (k *keyPage) SendKeys(_ context.Context, sel, keys string) error {
	k.sel = sel
	k.keys += keys
	return nil
}

func TestElement_SendKeys(t *testing.T) {
	p := &keyPage{}
	el := Element{Page: p, Selector: "#q"}

	for _, k := range []string{"a", "b"} {
		if err := el.SendKeys(context.Background(), k); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if p.sel != "#q" || p.keys != "ab" {
		t.Errorf("expected keys ab on #q, got %q on %q", p.keys, p.sel)
	}
}
