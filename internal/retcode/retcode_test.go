// SPDX-License-Identifier: MIT
package retcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestFromInt(t *testing.T) {
	tests := []struct {
		in   int
		want error
	}{
		{0, nil},
		{7, nil},
		{-2, ErrBusy},
		{-6, ErrInvalid},
		{-7, ErrSize},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			got := FromInt(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("FromInt(%d) = %v, want nil", tt.in, got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("FromInt(%d) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromIntUnknown(t *testing.T) {
	err := FromInt(-99)
	if !errors.Is(err, ErrFail) {
		t.Errorf("FromInt(-99) = %v, want wrapped ErrFail", err)
	}
}

func TestOfWrapped(t *testing.T) {
	err := fmt.Errorf("write page 3: %w", ErrBusy)
	if got := Of(err); got != Busy {
		t.Errorf("Of() = %s, want EBUSY", got)
	}
	if got := Of(nil); got != Success {
		t.Errorf("Of(nil) = %s, want SUCCESS", got)
	}
	if got := Of(errors.New("plain")); got != Fail {
		t.Errorf("Of(plain) = %s, want FAIL", got)
	}
}

func TestErrorString(t *testing.T) {
	if got := ErrInvalid.Error(); got != "EINVAL (-6)" {
		t.Errorf("Error() = %q", got)
	}
}
