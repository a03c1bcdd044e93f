package symbols

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Undecorator turns a decorated symbol name into a complete human readable
// form and a name-only form ("Class::Method") used for matching.
type Undecorator interface {
	Undecorate(decorated string) (full, nameOnly string)
}

var nameOnlyOptions = []demangle.Option{demangle.NoParams, demangle.NoTemplateParams, demangle.NoEnclosingParams}

// Demangler undecorates without a platform symbol engine. Itanium names go
// through the demangle package; MSVC names are reduced to their scoped name.
type Demangler struct{}

func (Demangler) Undecorate(decorated string) (string, string) {
	switch {
	case strings.HasPrefix(decorated, "_Z"):
		return demangle.Filter(decorated), demangle.Filter(decorated, nameOnlyOptions...)
	case strings.HasPrefix(decorated, "?"):
		if name, ok := msvcNameOnly(decorated); ok {
			return decorated, name
		}
	}
	return decorated, decorated
}

// msvcNameOnly extracts "Ns::Class::Method" from a Microsoft decorated name.
// Operators, templates and back-referenced fragments are not handled.
func msvcNameOnly(s string) (string, bool) {
	body := strings.TrimPrefix(s, "?")
	special := byte(0)
	if strings.HasPrefix(body, "?") {
		if len(body) < 2 || (body[1] != '0' && body[1] != '1') {
			return "", false
		}
		special = body[1]
		body = body[2:]
	}

	end := strings.Index(body, "@@")
	if end <= 0 {
		return "", false
	}
	parts := strings.Split(body[:end], "@")
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p[:1], "?$0123456789") {
			return "", false
		}
	}

	switch special {
	case '0':
		parts = append([]string{parts[0]}, parts...)
	case '1':
		parts = append([]string{"~" + parts[0]}, parts...)
	}

	scoped := make([]string, len(parts))
	for i, p := range parts {
		scoped[len(parts)-1-i] = p
	}
	return strings.Join(scoped, "::"), true
}
