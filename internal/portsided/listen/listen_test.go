package listen

import "testing"

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		host string
		port string
	}{
		{raw: "", host: "127.0.0.1", port: "7333"},
		{raw: "   ", host: "127.0.0.1", port: "7333"},
		{raw: "127.0.0.1:8080", host: "127.0.0.1", port: "8080"},
		{raw: ":9000", host: "", port: "9000"},
		{raw: "9000", host: "", port: "9000"},
		{raw: "0.0.0.0", host: "0.0.0.0", port: "7333"},
		{raw: "localhost", host: "localhost", port: "7333"},
		{raw: "[::1]:8443", host: "::1", port: "8443"},
	}

	for _, tt := range tests {
		addr, err := Parse(tt.raw)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tt.raw, err)
		}
		if addr.Host != tt.host || addr.Port != tt.port {
			t.Fatalf("Parse(%q) = %q:%q, want %q:%q", tt.raw, addr.Host, addr.Port, tt.host, tt.port)
		}
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{":notaport", "0", ":0", "127.0.0.1:99999", "a:b:c", "[::1]"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("Parse(%q) accepted invalid input", raw)
		}
	}
}

func TestString(t *testing.T) {
	t.Parallel()

	if got := Default().String(); got != "127.0.0.1:7333" {
		t.Fatalf("Default().String() = %q", got)
	}
	if got := (Addr{Port: "9000"}).String(); got != ":9000" {
		t.Fatalf("String() = %q, want :9000", got)
	}
	if got := (Addr{Host: "::1", Port: "8443"}).String(); got != "[::1]:8443" {
		t.Fatalf("String() = %q, want bracketed IPv6", got)
	}
}

func TestDisplayURL(t *testing.T) {
	t.Parallel()

	if got := (Addr{Host: "0.0.0.0", Port: "7333"}).DisplayURL(); got != "http://localhost:7333/" {
		t.Fatalf("DisplayURL() = %q", got)
	}
	if got := (Addr{Host: "::1", Port: "7333"}).DisplayURL(); got != "http://[::1]:7333/" {
		t.Fatalf("DisplayURL() = %q", got)
	}
}
