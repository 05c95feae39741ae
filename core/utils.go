package core

import (
	"reflect"

	"github.com/encodeous/weft/state"
)

func Get[T state.Module](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}

func TryGet[T state.Module](s *state.State) (T, bool) {
	if s == nil {
		var zero T
		return zero, false
	}
	m, ok := s.Modules[reflect.TypeFor[T]().String()].(T)
	return m, ok
}
