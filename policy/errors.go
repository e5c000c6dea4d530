package policy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSpec matches every *NormalizeError under errors.Is.
var ErrInvalidSpec = errors.New("effex: invalid policy spec")

// NormalizeError reports a spec field that cannot be normalized into a Policy.
// Field is a path such as "append[1].kind"; Policy is the name the spec was
// registered under in a spec file, if any.
type NormalizeError struct {
	Policy string
	Field  string
	Value  string
}

func (e *NormalizeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("effex: invalid policy spec")
	if e.Policy != "" {
		fmt.Fprintf(&b, " %q", e.Policy)
	}
	fmt.Fprintf(&b, ": %s=%q", e.Field, e.Value)
	if strings.HasSuffix(e.Field, "kind") {
		fmt.Fprintf(&b, " (want one of %s)", strings.Join(kindNames(), ", "))
	}
	return b.String()
}

func (e *NormalizeError) Is(target error) bool {
	return target == ErrInvalidSpec
}

func kindNames() []string {
	return []string{
		string(KindConstant),
		string(KindIncremental),
		string(KindExponential),
		string(KindFullJitter),
		string(KindEqualJitter),
		string(KindDecorrelatedJitter),
	}
}
