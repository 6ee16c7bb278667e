package numa

import "testing"

func TestDefaultBinderBindsWithoutPanic(t *testing.T) {
	b := NewDefaultBinder()
	for id := 0; id < 4; id++ {
		b.BindCurrentGoroutine(id)
	}
}
