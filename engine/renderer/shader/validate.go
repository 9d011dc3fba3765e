package shader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
)

// ErrUnsupportedByValidator marks naga failures caused by unimplemented language features rather
// than by the shader source.
var ErrUnsupportedByValidator = errors.New("shader: feature not supported by validator")

func (s *shader) Validate() error {
	out, err := naga.Compile(s.source)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
			return fmt.Errorf("%w: %s: %v", ErrUnsupportedByValidator, s.key, err)
		}
		return fmt.Errorf("shader: %s failed validation: %w", s.key, err)
	}
	if len(out) == 0 {
		return fmt.Errorf("shader: %s produced an empty module", s.key)
	}
	return nil
}
