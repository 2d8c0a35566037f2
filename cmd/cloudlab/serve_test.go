package main

import "testing"

func TestServeCmd_DefaultAddrIsLoopback(t *testing.T) {
	t.Parallel()

	flag := NewServeCmd().Flags().Lookup("addr")
	if flag == nil {
		t.Fatal("expected --addr flag")
	}
	if exposedAddr(flag.DefValue) {
		t.Errorf("default --addr %q accepts remote connections", flag.DefValue)
	}
}

func TestExposedAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want bool
	}{
		{addr: "127.0.0.1:8080", want: false},
		{addr: "127.1.2.3:8080", want: false},
		{addr: "[::1]:8080", want: false},
		{addr: "localhost:8080", want: false},
		{addr: ":8080", want: true},
		{addr: "0.0.0.0:8080", want: true},
		{addr: "[::]:8080", want: true},
		{addr: "192.168.1.10:8080", want: true},
		{addr: "lab.example.com:8080", want: true},
		{addr: "no-port", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			t.Parallel()
			if got := exposedAddr(tt.addr); got != tt.want {
				t.Errorf("exposedAddr(%q) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}
