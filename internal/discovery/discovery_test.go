package discovery

import "testing"

func TestEntryURL(t *testing.T) {
	e := Entry{Host: "192.168.1.20", Port: 8080}
	if got := e.URL(); got != "http://192.168.1.20:8080" {
		t.Fatalf("URL = %q", got)
	}
}

func TestInstanceName(t *testing.T) {
	cases := map[string]string{
		"studio._sketchboard._tcp.local.":     "studio",
		`my\ laptop._sketchboard._tcp.local.`: "my laptop",
		"bare":                                "bare",
	}
	for in, want := range cases {
		if got := instanceName(in); got != want {
			t.Fatalf("instanceName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShutdownNil(t *testing.T) {
	var a *Advertiser
	if err := a.Shutdown(); err != nil {
		t.Fatalf("Shutdown on nil: %v", err)
	}
}
