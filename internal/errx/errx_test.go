package errx

import (
	"errors"
	"fmt"
	"testing"
)

func TestE(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		if got := E("links.service.Create", Unavailable, nil); got != nil {
			t.Errorf("E(nil) = %v, want nil", got)
		}
	})

	t.Run("records op and kind", func(t *testing.T) {
		root := errors.New("connection refused")
		err := E("links.pg.Upsert", Unavailable, root)

		var e *Error
		if !errors.As(err, &e) {
			t.Fatal("expected *errx.Error")
		}
		if e.Op != "links.pg.Upsert" || e.Kind != Unavailable {
			t.Errorf("got op %q kind %v", e.Op, e.Kind)
		}
		if !errors.Is(err, root) {
			t.Error("root cause lost")
		}
	})
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"op and cause", &Error{Op: "links.service.Resolve", Kind: Invalid, Err: errors.New("token expired")}, "links.service.Resolve: token expired"},
		{"cause only", &Error{Kind: NotFound, Err: errors.New("no such file")}, "no such file"},
		{"op only", &Error{Op: "links.service.Startup", Kind: Internal}, "links.service.Startup"},
		{"empty", &Error{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	inner := E("links.pg.Get", NotFound, errors.New("no rows"))

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Unknown},
		{"plain error", errors.New("boom"), Unknown},
		{"single", inner, NotFound},
		{"through fmt wrapping", fmt.Errorf("resolve: %w", inner), NotFound},
		{"outermost wins", E("links.service.Resolve", Invalid, inner), Invalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpOf(t *testing.T) {
	inner := E("links.pg.Get", NotFound, errors.New("no rows"))

	if got := OpOf(errors.New("plain")); got != "" {
		t.Errorf("OpOf(plain) = %q", got)
	}
	if got := OpOf(inner); got != "links.pg.Get" {
		t.Errorf("OpOf(inner) = %q", got)
	}
	if got := OpOf(E("links.service.Resolve", Invalid, inner)); got != "links.service.Resolve" {
		t.Errorf("OpOf(outer) = %q, want outermost op", got)
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", E("links.service.Create", NotEnabled, errors.New("web server disabled")))

	if !Is(err, NotEnabled) {
		t.Error("Is(NotEnabled) = false")
	}
	if Is(err, Unavailable) {
		t.Error("Is(Unavailable) = true")
	}
	if Is(nil, Unknown) {
		t.Error("Is(nil, Unknown) = true")
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		kind        Kind
		name        string
		serverFault bool
	}{
		{Unknown, "Unknown", true},
		{Invalid, "Invalid", false},
		{NotFound, "NotFound", false},
		{NotEnabled, "NotEnabled", false},
		{Unavailable, "Unavailable", true},
		{Internal, "Internal", true},
		{Kind(99), "Kind(99)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.kind.ServerFault(); got != tt.serverFault {
				t.Errorf("ServerFault() = %v, want %v", got, tt.serverFault)
			}
		})
	}
}
