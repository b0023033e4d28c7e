package device

import (
	"errors"
	"testing"
)

func TestGroups(t *testing.T) {
	tests := []struct {
		n, wg, want Dim3
	}{
		{Dim3{64, 64, 64}, Dim3{4, 4, 8}, Dim3{16, 16, 8}},
		{Dim3{5, 9, 13}, Dim3{4, 4, 8}, Dim3{2, 3, 2}},
		{Dim3{1, 1, 1}, Dim3{8, 8, 4}, Dim3{1, 1, 1}},
	}

	for _, tt := range tests {
		if got := Groups(tt.n, tt.wg); got != tt.want {
			t.Errorf("Groups(%v, %v) = %v, want %v", tt.n, tt.wg, got, tt.want)
		}
	}
}

func TestProgramCheck(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		name    string
		prog    Program
		groups  Dim3
		wantErr error
	}{
		{"ok", Program{Workgroup: Dim3{4, 4, 8}, SharedFloats: 1024}, Dim3{2, 2, 2}, nil},
		{"zero workgroup", Program{Workgroup: Dim3{0, 4, 8}}, Dim3{1, 1, 1}, ErrLaunch},
		{"too many invocations", Program{Workgroup: Dim3{8, 8, 8}}, Dim3{1, 1, 1}, ErrLimits},
		{"too much scratch", Program{Workgroup: Dim3{4, 4, 4}, SharedFloats: 8192}, Dim3{1, 1, 1}, ErrLimits},
		{"empty grid", Program{Workgroup: Dim3{4, 4, 4}}, Dim3{1, 0, 1}, ErrLaunch},
		{"grid too large", Program{Workgroup: Dim3{4, 4, 4}}, Dim3{1, 70000, 1}, ErrLimits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prog.Check(limits, tt.groups)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ErrDevice) {
				t.Fatalf("%v does not wrap ErrDevice", err)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap("read", nil) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}

	err := Wrap("alloc", ErrAlloc)
	var derr *Error
	if !errors.As(err, &derr) || derr.Op != "alloc" {
		t.Fatalf("errors.As failed for %v", err)
	}
	if !errors.Is(err, ErrDevice) {
		t.Fatalf("%v does not wrap ErrDevice", err)
	}
	if got, want := err.Error(), "alloc: device: allocation failed"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
